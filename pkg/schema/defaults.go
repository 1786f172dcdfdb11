package schema

import (
	"path/filepath"
	"runtime"

	"github.com/butter-bot-machines/slskconf/pkg/value"
)

// Sections whose options may all be left empty
var emptySections = map[string]bool{
	"userinfo": true,
	"ui":       true,
	"ticker":   true,
	"players":  true,
}

// Options that may be left empty in any section
var emptyOptions = map[string]bool{
	"incompletedir":  true,
	"autoreply":      true,
	"afterfinish":    true,
	"afterfolder":    true,
	"geoblockcc":     true,
	"downloadregexp": true,
}

var required = map[string]map[string]bool{
	"server":    {"server": true, "login": true, "passw": true},
	"transfers": {"downloaddir": true},
}

type builder struct {
	r       *Registry
	section string
}

func (b *builder) add(o Option) {
	o.Section = b.section
	o.MayBeEmpty = emptySections[b.section] || emptyOptions[o.Name]
	o.Required = required[b.section][o.Name]
	b.r.MustRegister(o)
}

// lit declares an option stored in literal syntax
func (b *builder) lit(name, literal string) {
	b.add(Option{Name: name, Default: value.MustParse(literal)})
}

// text declares an option stored as raw text
func (b *builder) text(name, s string) {
	b.add(Option{Name: name, Default: value.Text(s), RawText: true})
}

// external declares an option persisted outside the settings file
func (b *builder) external(name, literal string) {
	b.add(Option{Name: name, Default: value.MustParse(literal), External: true})
}

// ShareTableOptions lists the transfers options backed by share tables
var ShareTableOptions = []string{
	"sharedfiles", "sharedfilesstreams", "wordindex", "fileindex", "sharedmtimes",
	"bsharedfiles", "bsharedfilesstreams", "bwordindex", "bfileindex", "bsharedmtimes",
}

// Defaults builds the registry of every recognised option. Path defaults
// are derived from the data directory and the home directory.
func Defaults(dataDir, homeDir string) *Registry {
	r := New()
	logDir := filepath.Join(dataDir, "logs")

	b := &builder{r: r, section: "server"}
	b.lit("server", "('server.slsknet.org', 2242)")
	b.text("login", "")
	b.text("passw", "")
	b.lit("firewalled", "0")
	b.lit("ctcpmsgs", "0")
	b.lit("autosearch", "[]")
	b.text("autoreply", "")
	b.lit("portrange", "(2234, 2239)")
	b.lit("upnp", "True")
	b.lit("userlist", "[]")
	b.lit("banlist", "[]")
	b.lit("ignorelist", "[]")
	b.lit("ipignorelist", "{}")
	b.lit("ipblocklist", "{'72.172.88.*': 'MediaDefender Bots'}")
	b.lit("autojoin", "['nicotine']")
	b.lit("autoaway", "15")
	b.lit("private_chatrooms", "0")

	b = &builder{r: r, section: "transfers"}
	b.text("incompletedir", filepath.Join(dataDir, "incompletefiles"))
	b.text("downloaddir", filepath.Join(homeDir, "nicotine-downloads"))
	b.text("uploaddir", filepath.Join(homeDir, "nicotine-uploads"))
	b.lit("sharedownloaddir", "0")
	b.lit("shared", "[]")
	b.lit("buddyshared", "[]")
	b.lit("uploadbandwidth", "10")
	b.lit("uselimit", "0")
	b.lit("uploadlimit", "150")
	b.lit("downloadlimit", "0")
	b.lit("preferfriends", "0")
	b.lit("useupslots", "0")
	b.lit("uploadslots", "2")
	b.text("afterfinish", "")
	b.text("afterfolder", "")
	b.lit("lock", "1")
	b.lit("reverseorder", "0")
	b.lit("prioritize", "0")
	b.lit("fifoqueue", "0")
	b.lit("usecustomban", "0")
	b.lit("limitby", "1")
	b.text("customban", "Banned, don't bother retrying")
	b.lit("queuelimit", "10000")
	b.lit("filelimit", "1000")
	b.lit("friendsonly", "0")
	b.lit("friendsnolimits", "0")
	b.lit("enablebuddyshares", "0")
	b.lit("enabletransferbuttons", "1")
	b.lit("groupdownloads", "True")
	b.lit("groupuploads", "True")
	b.lit("geoblock", "0")
	b.lit("geopanic", "0")
	b.lit("geoblockcc", "['']")
	b.lit("remotedownloads", "1")
	b.lit("uploadallowed", "2")
	b.lit("autoclear_downloads", "0")
	b.lit("autoclear_uploads", "0")
	b.external("downloads", "[]")
	b.lit("uploadsinsubdirs", "1")
	for _, name := range ShareTableOptions {
		b.external(name, "{}")
	}
	b.lit("rescanonstartup", "0")
	b.lit("enablefilters", "1")
	b.text("downloadregexp", "")
	b.lit("downloadfilters", `[['desktop.ini', 1], ['folder.jpg', 1], ['*.url', 1], ['thumbs.db', 1], `+
		`['albumart(_{........-....-....-....-............}_)?(_?(large|small))?\\.jpg', 0]]`)
	b.lit("download_doubleclick", "1")
	b.lit("upload_doubleclick", "1")
	b.lit("downloadsexpanded", "True")
	b.lit("uploadsexpanded", "True")

	b = &builder{r: r, section: "userinfo"}
	b.text("descr", "''")
	b.text("pic", "")

	b = &builder{r: r, section: "words"}
	b.lit("censored", "[]")
	b.lit("autoreplaced", "{'teh ': 'the ', 'taht ': 'that ', 'tihng': 'thing', 'youre': \"you're\", "+
		"'jsut': 'just', 'thier': 'their', 'tihs': 'this'}")
	b.text("censorfill", "*")
	b.lit("censorwords", "False")
	b.lit("replacewords", "False")
	b.lit("tab", "True")
	b.lit("cycle", "False")
	b.lit("dropdown", "True")
	b.lit("characters", "2")
	b.lit("roomnames", "True")
	b.lit("buddies", "True")
	b.lit("roomusers", "True")
	b.lit("commands", "True")
	b.lit("aliases", "True")
	b.lit("onematch", "True")

	b = &builder{r: r, section: "logging"}
	b.lit("debug", "False")
	b.lit("debugmodes", "[0, 1]")
	b.lit("logcollapsed", "0")
	b.text("logsdir", logDir)
	b.text("rooms_timestamp", "%H:%M:%S")
	b.text("private_timestamp", "%Y-%m-%d %H:%M:%S")
	b.text("log_timestamp", "%Y-%m-%d %H:%M:%S")
	b.lit("timestamps", "1")
	b.lit("privatechat", "0")
	b.lit("chatrooms", "0")
	b.lit("transfers", "0")
	b.text("roomlogsdir", filepath.Join(logDir, "rooms"))
	b.text("privatelogsdir", filepath.Join(logDir, "private"))
	b.lit("readroomlogs", "1")
	b.lit("readroomlines", "15")
	b.lit("readprivatelines", "15")
	b.lit("rooms", "[]")

	b = &builder{r: r, section: "privatechat"}
	b.lit("store", "0")
	b.lit("users", "[]")

	b = &builder{r: r, section: "columns"}
	b.lit("userbrowse", "[1, 1, 1, 1]")
	b.lit("userbrowse_widths", "[600, 100, 70, 0]")
	b.lit("userlist", "[1, 1, 1, 1, 1, 1, 1, 1, 1, 1]")
	b.lit("userlist_widths", "[0, 25, 180, 0, 0, 0, 0, 0, 160, 0]")
	b.lit("chatrooms", "{}")
	b.lit("chatrooms_widths", "{}")
	b.lit("download_columns", "[1, 1, 1, 1, 1, 1, 1, 1, 1, 1]")
	b.lit("download_widths", "[200, 250, 250, 140, 50, 70, 170, 90, 140, 0]")
	b.lit("upload_columns", "[1, 1, 1, 1, 1, 1, 1, 1, 1, 1]")
	b.lit("upload_widths", "[200, 250, 250, 140, 50, 70, 170, 90, 140, 0]")
	b.lit("filesearch_columns", "[1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1]")
	b.lit("filesearch_widths", "[50, 200, 25, 50, 90, 90, 400, 400, 100, 100, 0]")
	b.lit("hideflags", "False")

	b = &builder{r: r, section: "searches"}
	b.lit("expand_searches", "True")
	b.lit("group_searches", "True")
	b.lit("maxresults", "50")
	b.lit("re_filter", "0")
	b.lit("history", "[]")
	b.lit("enablefilters", "0")
	b.lit("defilter", "['', '', '', '', 0, '']")
	b.lit("filtercc", "[]")
	b.lit("reopen_tabs", "False")
	b.lit("filterin", "[]")
	b.lit("filterout", "[]")
	b.lit("filtersize", "[]")
	b.lit("filterbr", "[]")
	b.lit("distrib_timer", "0")
	b.lit("distrib_ignore", "60")
	b.lit("search_results", "1")
	b.lit("max_displayed_results", "1000")
	b.lit("max_stored_results", "1500")
	b.lit("remove_special_chars", "True")

	b = &builder{r: r, section: "ui"}
	b.text("icontheme", "")
	b.text("chatme", "FOREST GREEN")
	b.text("chatremote", "")
	b.text("chatlocal", "BLUE")
	b.text("chathilite", "red")
	b.text("urlcolor", "#3D2B7F")
	b.text("useronline", "BLACK")
	b.text("useraway", "ORANGE")
	b.text("useroffline", "#aa0000")
	b.lit("usernamehotspots", "1")
	b.text("usernamestyle", "bold")
	b.text("textbg", "")
	b.text("search", "")
	b.text("searchq", "GREY")
	b.text("inputcolor", "")
	b.lit("spellcheck", "1")
	b.lit("exitdialog", "1")
	b.lit("notexists", "1")
	b.text("tab_default", "")
	b.text("tab_hilite", "red")
	b.text("tab_changed", "#0000ff")
	b.lit("tab_select_previous", "1")
	b.lit("tab_reorderable", "1")
	b.text("tabmain", "Top")
	b.text("tabrooms", "Top")
	b.text("tabprivate", "Top")
	b.text("tabinfo", "Top")
	b.text("tabbrowse", "Top")
	b.text("tabsearch", "Top")
	b.lit("tab_status_icons", "1")
	b.lit("chat_hidebuttons", "0")
	b.lit("labelmain", "0")
	b.lit("labelrooms", "0")
	b.lit("labelprivate", "0")
	b.lit("labelinfo", "0")
	b.lit("labelbrowse", "0")
	b.lit("labelsearch", "0")
	b.text("decimalsep", ",")
	b.text("chatfont", "")
	b.lit("roomlistcollapsed", "0")
	b.lit("tabclosers", "1")
	b.text("searchfont", "")
	b.text("listfont", "")
	b.text("browserfont", "")
	b.text("transfersfont", "")
	b.lit("last_tab_id", "0")
	b.lit("modes_visible", "{'chatrooms': 1, 'private': 1, 'downloads': 1, 'uploads': 1, "+
		"'search': 1, 'userinfo': 1, 'userbrowse': 1, 'interests': 1}")
	b.lit("modes_order", "['chatrooms', 'private', 'downloads', 'uploads', 'search', "+
		"'userinfo', 'userbrowse', 'interests', 'userlist']")
	b.lit("showaway", "0")
	b.lit("buddylistinchatrooms", "0")
	b.lit("trayicon", "1")
	if runtime.GOOS == "windows" {
		b.text("filemanager", "explorer $")
	} else {
		b.text("filemanager", "xdg-open $")
	}
	b.lit("speechenabled", "0")
	b.text("speechprivate", "%(user)s told you.. %(message)s")
	b.text("speechrooms", "In %(room)s, %(user)s said %(message)s")
	b.text("speechcommand", "flite -t $")
	b.lit("width", "1000")
	b.lit("height", "600")
	b.lit("xposition", "-1")
	b.lit("yposition", "-1")
	b.text("maximized", "True")
	b.lit("urgencyhint", "True")

	b = &builder{r: r, section: "private_rooms"}
	b.lit("rooms", "{}")
	b.lit("enabled", "0")

	b = &builder{r: r, section: "urls"}
	b.lit("urlcatching", "1")
	b.lit("protocols", "{}")
	b.lit("humanizeurls", "1")

	b = &builder{r: r, section: "interests"}
	b.lit("likes", "[]")
	b.lit("dislikes", "[]")

	b = &builder{r: r, section: "ticker"}
	b.text("default", "")
	b.lit("rooms", "{}")
	b.lit("hide", "0")

	b = &builder{r: r, section: "players"}
	b.text("default", "xdg-open $")
	b.text("npothercommand", "")
	b.text("npplayer", "")
	b.lit("npformatlist", "[]")
	b.text("npformat", "")

	b = &builder{r: r, section: "notifications"}
	b.lit("notification_window_title", "1")
	b.lit("notification_tab_colors", "0")
	b.lit("notification_tab_icons", "1")
	b.lit("notification_popup_sound", "1")
	b.lit("notification_popup_file", "1")
	b.lit("notification_popup_folder", "1")
	b.lit("notification_popup_private_message", "1")
	b.lit("notification_popup_chatroom", "0")
	b.lit("notification_popup_chatroom_mention", "1")

	b = &builder{r: r, section: "plugins"}
	b.lit("enable", "1")
	b.lit("enabled", "[]")

	return r
}
