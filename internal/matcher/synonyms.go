package matcher

// synonymGroups maps a canonical token to the variants folded into it.
// The table is many-to-one: every variant rewrites to its canonical form
// during normalization, so "show files" and "list files" share a hash.
var synonymGroups = map[string][]string{
	// file operations
	"list":   {"show", "display", "ls", "dir"},
	"create": {"make", "new", "mkdir", "touch"},
	"delete": {"remove", "rm", "del", "unlink"},
	"copy":   {"cp", "duplicate"},
	"move":   {"mv", "rename"},
	"find":   {"search", "locate", "grep"},

	// system operations
	"install": {"add", "setup"},
	"update":  {"upgrade", "refresh"},
	"start":   {"run", "execute", "launch"},
	"stop":    {"kill", "terminate", "halt"},
	"status":  {"check", "info", "state"},

	// network operations
	"download": {"fetch", "get", "pull"},
	"upload":   {"push", "send"},
	"connect":  {"link", "join"},

	// common vocabulary
	"all":       {"everything", "total"},
	"current":   {"present"},
	"recursive": {"deep"},
	"force":     {"overwrite"},
}

// stopWords are dropped before canonicalization; they carry no intent.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "can": {}, "must": {}, "shall": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "by": {}, "for": {},
	"with": {}, "from": {}, "up": {}, "about": {}, "into": {}, "through": {},
	"during": {}, "before": {}, "after": {}, "above": {}, "below": {},
	"between": {}, "among": {}, "under": {}, "over": {}, "out": {}, "off": {},
	"down": {}, "so": {}, "but": {}, "and": {}, "or": {}, "not": {}, "no": {},
	"nor": {}, "as": {}, "if": {}, "than": {}, "then": {}, "now": {},
	"here": {}, "there": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"what": {}, "which": {}, "who": {}, "whom": {}, "this": {}, "that": {},
	"these": {}, "those": {}, "my": {}, "your": {}, "his": {}, "her": {},
	"its": {}, "our": {}, "their": {},
}

func buildReverseSynonyms() map[string]string {
	reverse := make(map[string]string, len(synonymGroups)*4)
	for canonical, variants := range synonymGroups {
		reverse[canonical] = canonical
		for _, v := range variants {
			reverse[v] = canonical
		}
	}
	return reverse
}
