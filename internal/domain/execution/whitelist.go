package execution

// Whitelist is the set of command strings permitted to execute. Membership is
// exact string equality; no globbing or normalization is applied.
type Whitelist map[string]struct{}

// NewWhitelist builds a whitelist from the given commands.
func NewWhitelist(commands ...string) Whitelist {
	w := make(Whitelist, len(commands))
	for _, c := range commands {
		w[c] = struct{}{}
	}
	return w
}

// Contains reports whether command is whitelisted.
func (w Whitelist) Contains(command string) bool {
	_, ok := w[command]
	return ok
}

// Validate returns the requested commands that are present in whitelist with
// duplicates removed. Callers must treat the result as a set; the current
// implementation happens to keep first-occurrence order.
func Validate(requested []string, whitelist Whitelist) []string {
	if len(requested) == 0 || len(whitelist) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(requested))
	approved := make([]string, 0, len(requested))
	for _, cmd := range requested {
		if !whitelist.Contains(cmd) {
			continue
		}
		if _, dup := seen[cmd]; dup {
			continue
		}
		seen[cmd] = struct{}{}
		approved = append(approved, cmd)
	}
	return approved
}
