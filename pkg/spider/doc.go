// Package spider recognizes well-known crawlers by their User-Agent string.
//
// Recognition is a case-insensitive substring match against a directory of
// spider identifiers. The session layer uses the resulting spider id to
// collapse many anonymous crawler sessions onto a single online-presence
// record, so the "users online" view shows "Googlebot" once instead of a
// few hundred guests.
//
//	dir := spider.DefaultDirectory()
//	if id, ok := dir.Identify(r.Header.Get("User-Agent")); ok {
//		// id is a stable slug like "googlebot"
//	}
package spider
