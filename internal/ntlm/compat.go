package ntlm

import "regexp"

var (
	windowsAgent   = regexp.MustCompile(`(?i)windows|win32`)
	msieAgent      = regexp.MustCompile(`(?i)MSIE`)
	windowsNTAgent = regexp.MustCompile(`(?i)Windows NT`)
	tridentAgent   = regexp.MustCompile(`(?i)Trident`)
	chromeAgent    = regexp.MustCompile(`(?i)Chrome`)
)

// IsCompatibleEnvironment reports whether the User-Agent belongs to a browser
// that performs integrated Windows authentication without prompting.
func IsCompatibleEnvironment(userAgent string) bool {
	if !windowsAgent.MatchString(userAgent) {
		return false
	}
	return msieAgent.MatchString(userAgent) ||
		(windowsNTAgent.MatchString(userAgent) && tridentAgent.MatchString(userAgent)) ||
		chromeAgent.MatchString(userAgent)
}
