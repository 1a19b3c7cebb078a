package normalize

import "strings"

// browserByBundle maps known browser bundle identifiers to their canonical
// lower-cased application name.
var browserByBundle = map[string]string{
	"com.apple.safari":                    "safari",
	"com.apple.safaritechnologypreview":   "safari",
	"com.google.chrome":                   "google chrome",
	"com.google.chrome.canary":            "google chrome",
	"org.chromium.chromium":               "chromium",
	"org.mozilla.firefox":                 "firefox",
	"org.mozilla.firefoxdeveloperedition": "firefox",
	"org.mozilla.nightly":                 "firefox",
	"company.thebrowser.browser":          "arc",
	"com.microsoft.edgemac":               "microsoft edge",
	"com.brave.browser":                   "brave browser",
	"com.operasoftware.opera":             "opera",
	"com.vivaldi.vivaldi":                 "vivaldi",
}

// IsBrowser reports whether the foreground application is a known web browser,
// matched by bundle identifier first and application name second.
func IsBrowser(appName, bundleID string) bool {
	if _, ok := browserByBundle[strings.ToLower(strings.TrimSpace(bundleID))]; ok {
		return true
	}
	_, ok := appAliases[strings.ToLower(squish(appName))]
	return ok
}
