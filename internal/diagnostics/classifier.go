package diagnostics

import "regexp"

// FixKind names the category of remediation a Classification proposes.
// Retry never applies two fixes of the same kind for one failing
// operation, since a second identical-shaped fix almost never helps where
// the first one didn't.
type FixKind string

const (
	FixSetEnv          FixKind = "set_env"
	FixUseMirror       FixKind = "use_mirror"
	FixRetryWithTimeout FixKind = "retry_with_timeout"
	FixCustom          FixKind = "custom"
)

// Fix is one concrete remediation a family's rule proposes. Only the
// field(s) relevant to Kind are populated.
type Fix struct {
	Kind FixKind

	// FixSetEnv
	Env map[string]string

	// FixUseMirror
	MirrorURL string

	// FixRetryWithTimeout
	TimeoutMS int

	// FixCustom
	Command string
}

// Classification is one family's match against a failure's stderr, with
// the fixes that family proposes, in the order they should be tried.
type Classification struct {
	Family  string
	Pattern string
	Fixes   []Fix
}

type rule struct {
	family string
	re     *regexp.Regexp
	fixes  []Fix
}

// Classifier matches a command's stderr against an ordered list of
// regex-keyed failure families.
type Classifier struct {
	rules []rule
}

// NewClassifier creates an empty classifier; use AddRule to register
// families, or DefaultClassifier for the built-in set.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// AddRule registers a family matched by pattern, with fixes tried in
// order when Retry needs one not yet applied.
func (c *Classifier) AddRule(family, pattern string, fixes ...Fix) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, rule{family: family, re: re, fixes: fixes})
	return nil
}

// Classify returns every family whose pattern matches stderr, in
// registration order.
func (c *Classifier) Classify(stderr string) []Classification {
	var out []Classification
	for _, r := range c.rules {
		if r.re.MatchString(stderr) {
			out = append(out, Classification{Family: r.family, Pattern: r.re.String(), Fixes: r.fixes})
		}
	}
	return out
}

// DefaultClassifier returns a Classifier seeded with the common failure
// families a build/install/network-bound command hits: connection
// timeouts, package registry/mirror failures, rate limiting, permission
// errors, and out-of-memory kills.
func DefaultClassifier() *Classifier {
	c := NewClassifier()

	mustAdd := func(family, pattern string, fixes ...Fix) {
		if err := c.AddRule(family, pattern, fixes...); err != nil {
			panic(err) // built-in patterns are constants; a compile failure is a programmer error
		}
	}

	mustAdd("network_timeout",
		`(?i)(connection timed out|i/o timeout|context deadline exceeded|dial tcp.*timeout)`,
		Fix{Kind: FixRetryWithTimeout, TimeoutMS: 60000},
	)
	mustAdd("registry_unreachable",
		`(?i)(registry\.npmjs\.org|proxy\.golang\.org|pypi\.org).*(refused|unreachable|no such host|timeout)`,
		Fix{Kind: FixUseMirror, MirrorURL: ""},
		Fix{Kind: FixRetryWithTimeout, TimeoutMS: 90000},
	)
	mustAdd("rate_limited",
		`(?i)(429|rate limit|too many requests)`,
		Fix{Kind: FixRetryWithTimeout, TimeoutMS: 30000},
	)
	mustAdd("permission_denied",
		`(?i)(permission denied|EACCES|operation not permitted)`,
		Fix{Kind: FixCustom, Command: "chmod +x"},
	)
	mustAdd("missing_env",
		`(?i)(environment variable .* not set|required env var|missing required configuration)`,
		Fix{Kind: FixSetEnv, Env: map[string]string{}},
	)
	mustAdd("out_of_memory",
		`(?i)(out of memory|oom.?killed|cannot allocate memory)`,
		Fix{Kind: FixRetryWithTimeout, TimeoutMS: 120000},
	)

	return c
}
