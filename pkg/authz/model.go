package authz

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed model.conf
var defaultModelConf string

// MatchKind identifies one of the fixed matcher behaviors the model can
// compose. The set is closed: the conf artifact selects among these, it
// cannot define new ones.
type MatchKind int

const (
	// MatchExact requires literal equality between request and policy fields.
	MatchExact MatchKind = iota

	// MatchRoleInherits allows the request subject to satisfy a policy
	// subject reachable through role-inheritance edges (transitive,
	// unlimited depth, visited-set cycle detection).
	MatchRoleInherits

	// MatchGroupMember allows the request subject to satisfy a policy
	// subject reachable through group-membership edges.
	MatchGroupMember

	// MatchWildcard is MatchExact plus a "*" policy object matching any
	// request object.
	MatchWildcard
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchRoleInherits:
		return "role-inherits"
	case MatchGroupMember:
		return "group-member"
	case MatchWildcard:
		return "wildcard"
	}
	return "unknown"
}

// Model is the compiled policy model: the matcher kinds for each request
// field and the set of domains whose grants are inheritance edges. It is
// built once at startup and read-only afterwards.
type Model struct {
	SubjectKinds []MatchKind
	DomainKind   MatchKind
	ObjectKind   MatchKind

	// InheritanceDomains are the grant domains the subject closure follows,
	// in role_definition order (e.g. "role", "group").
	InheritanceDomains []string
}

// DefaultModel compiles the embedded model.conf.
func DefaultModel() (*Model, error) {
	return parseModel(strings.NewReader(defaultModelConf))
}

// LoadModel compiles a model conf file from disk.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model conf: %w", err)
	}
	defer f.Close()
	m, err := parseModel(f)
	if err != nil {
		return nil, fmt.Errorf("model conf %s: %w", path, err)
	}
	return m, nil
}

// InheritsSubjects reports whether the subject matcher traverses inheritance
// edges at all (MatchRoleInherits or MatchGroupMember present).
func (m *Model) InheritsSubjects() bool {
	for _, k := range m.SubjectKinds {
		if k == MatchRoleInherits || k == MatchGroupMember {
			return true
		}
	}
	return false
}

// FollowsDomain reports whether grants in the domain are inheritance edges
// the subject closure must traverse.
func (m *Model) FollowsDomain(domain string) bool {
	for _, d := range m.InheritanceDomains {
		if d == domain {
			return true
		}
	}
	return false
}

// MatchObject evaluates the object matcher for a request object against a
// stored policy object.
func (m *Model) MatchObject(requested, stored string) bool {
	if m.ObjectKind == MatchWildcard && stored == "*" {
		return true
	}
	return requested == stored
}

func parseModel(r io.Reader) (*Model, error) {
	sections, err := parseSections(r)
	if err != nil {
		return nil, err
	}

	if err := requireTriple(sections, "request_definition", "r"); err != nil {
		return nil, err
	}
	if err := requireTriple(sections, "policy_definition", "p"); err != nil {
		return nil, err
	}

	m := &Model{DomainKind: MatchExact}

	roleDef, ok := sections["role_definition"]["g"]
	if ok {
		for _, d := range strings.Split(roleDef, ",") {
			d = strings.TrimSpace(d)
			if d == "" {
				return nil, fmt.Errorf("empty domain in role_definition")
			}
			m.InheritanceDomains = append(m.InheritanceDomains, d)
		}
	}

	matcher, ok := sections["matchers"]["m"]
	if !ok {
		return nil, fmt.Errorf("missing [matchers] section")
	}
	if err := m.compileMatcher(matcher); err != nil {
		return nil, err
	}

	return m, nil
}

// compileMatcher resolves the matcher expression into fixed match kinds. Only
// the clause forms below are recognized; anything else is a config error at
// startup, never a runtime dispatch.
func (m *Model) compileMatcher(expr string) error {
	var haveSub, haveDom, haveObj bool

	for _, clause := range strings.Split(expr, "&&") {
		clause = strings.Join(strings.Fields(clause), " ")
		switch clause {
		case "r.sub == p.sub":
			m.SubjectKinds = []MatchKind{MatchExact}
			haveSub = true
		case "inherits(r.sub, p.sub)":
			m.SubjectKinds = m.subjectKindsFromInheritance()
			haveSub = true
		case "r.dom == p.dom":
			m.DomainKind = MatchExact
			haveDom = true
		case "r.obj == p.obj":
			m.ObjectKind = MatchExact
			haveObj = true
		case "keyMatch(r.obj, p.obj)":
			m.ObjectKind = MatchWildcard
			haveObj = true
		default:
			return fmt.Errorf("unsupported matcher clause %q", clause)
		}
	}

	if !haveSub || !haveDom || !haveObj {
		return fmt.Errorf("matcher must constrain sub, dom and obj")
	}
	if len(m.SubjectKinds) > 1 && len(m.InheritanceDomains) == 0 {
		return fmt.Errorf("inherits() matcher requires a [role_definition] section")
	}
	return nil
}

func (m *Model) subjectKindsFromInheritance() []MatchKind {
	kinds := []MatchKind{MatchExact}
	for _, d := range m.InheritanceDomains {
		switch d {
		case DomainGroup:
			kinds = append(kinds, MatchGroupMember)
		default:
			kinds = append(kinds, MatchRoleInherits)
		}
	}
	return kinds
}

func requireTriple(sections map[string]map[string]string, section, key string) error {
	val, ok := sections[section][key]
	if !ok {
		return fmt.Errorf("missing [%s] section", section)
	}
	fields := strings.Split(val, ",")
	if len(fields) != 3 {
		return fmt.Errorf("[%s] must declare exactly sub, dom, obj", section)
	}
	want := []string{"sub", "dom", "obj"}
	for i, f := range fields {
		if strings.TrimSpace(f) != want[i] {
			return fmt.Errorf("[%s] must declare exactly sub, dom, obj", section)
		}
	}
	return nil
}

func parseSections(r io.Reader) (map[string]map[string]string, error) {
	sections := make(map[string]map[string]string)
	current := ""

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = strings.TrimSpace(line[1 : len(line)-1])
			if _, dup := sections[current]; dup {
				return nil, fmt.Errorf("duplicate section [%s]", current)
			}
			sections[current] = make(map[string]string)
			continue
		}
		if current == "" {
			return nil, fmt.Errorf("entry %q outside any section", line)
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed entry %q in [%s]", line, current)
		}
		sections[current][strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read model conf: %w", err)
	}
	return sections, nil
}
