package store

import "strings"

// Separator is the canonical key path separator.
const Separator = `\`

// Predefined top-level keys.
const (
	HKEYLocalMachine  = "HKEY_LOCAL_MACHINE"
	HKEYCurrentUser   = "HKEY_CURRENT_USER"
	HKEYClassesRoot   = "HKEY_CLASSES_ROOT"
	HKEYUsers         = "HKEY_USERS"
	HKEYCurrentConfig = "HKEY_CURRENT_CONFIG"
)

var rootAliases = map[string]string{
	"HKEY_LOCAL_MACHINE":  HKEYLocalMachine,
	"HKLM":                HKEYLocalMachine,
	"HKEY_CURRENT_USER":   HKEYCurrentUser,
	"HKCU":                HKEYCurrentUser,
	"HKEY_CLASSES_ROOT":   HKEYClassesRoot,
	"HKCR":                HKEYClassesRoot,
	"HKEY_USERS":          HKEYUsers,
	"HKU":                 HKEYUsers,
	"HKEY_CURRENT_CONFIG": HKEYCurrentConfig,
	"HKCC":                HKEYCurrentConfig,
}

// Roots lists the predefined top-level keys in display order.
var Roots = []string{
	HKEYClassesRoot,
	HKEYCurrentUser,
	HKEYLocalMachine,
	HKEYUsers,
	HKEYCurrentConfig,
}

// CanonicalRoot maps a root name or abbreviation (HKLM, hkey_local_machine)
// to its canonical form.
func CanonicalRoot(name string) (string, bool) {
	root, ok := rootAliases[strings.ToUpper(name)]
	return root, ok
}

// SplitPath splits a key path into segments. Forward slashes are accepted as
// separators, and empty segments from leading, trailing or doubled
// separators are dropped.
//
// Example:
//
//	`SOFTWARE\Classes\\CLSID\` → ["SOFTWARE", "Classes", "CLSID"]
func SplitPath(path string) []string {
	path = strings.ReplaceAll(path, "/", Separator)
	segments := strings.Split(path, Separator)
	result := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg != "" {
			result = append(result, seg)
		}
	}
	return result
}

// JoinPath joins segments with the canonical separator.
func JoinPath(segments ...string) string {
	return strings.Join(segments, Separator)
}

// SplitRoot separates the predefined root from the rest of a full path.
// The root is returned in canonical form.
//
// Example:
//
//	`HKLM\SOFTWARE\Test` → ("HKEY_LOCAL_MACHINE", "SOFTWARE\Test", true)
func SplitRoot(path string) (root, rest string, ok bool) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return "", "", false
	}
	root, ok = CanonicalRoot(segs[0])
	if !ok {
		return "", "", false
	}
	return root, JoinPath(segs[1:]...), true
}

// EqualNames compares key or value names the way the registry does
// (case-insensitive).
func EqualNames(a, b string) bool {
	return strings.EqualFold(a, b)
}

// FoldName returns the lookup form of a name.
func FoldName(name string) string {
	return strings.ToLower(name)
}
