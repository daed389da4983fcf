package wfs

// StripANSI removes ANSI CSI escape sequences (ESC '[' ... final byte 'm')
// from s, used to sanitize every path string and xattr value crossing the
// bridge boundary (spec.md §5). Anything else, including a lone ESC not
// followed by '[', passes through unchanged.
//
// Grounded on the original implementation's strip_ansi_codes
// (original_source/wfs.c), generalized from its fixed output buffer to a
// string builder.
func StripANSI(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			i += 2
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
