package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/ShayCichocki/fission/pkg/models"
)

// PatternRule orders two operation verbs on the same entity: an atom
// performing Then waits for every atom performing First.
type PatternRule struct {
	// First is the verb that must run first.
	First string `json:"first" yaml:"first"`
	// Then is the verb that depends on First.
	Then string `json:"then" yaml:"then"`
}

// DefaultPatternRules returns the built-in operation-sequencing rules.
func DefaultPatternRules() []PatternRule {
	return []PatternRule{
		{First: "create", Then: "add"},
		{First: "create", Then: "update"},
		{First: "create", Then: "delete"},
		{First: "open", Then: "close"},
		{First: "acquire", Then: "release"},
	}
}

// inferEdges unions the three edge strategies, deduplicating by (From, To).
// The first strategy to propose a pair keeps its kind: explicit beats
// crud-inferred beats pattern-inferred.
func (b *Builder) inferEdges(atoms []*models.AtomicUnit, index map[string]*models.AtomicUnit) ([]models.DependencyEdge, error) {
	var edges []models.DependencyEdge
	seen := make(map[[2]string]bool)
	add := func(edge models.DependencyEdge) {
		key := [2]string{edge.From, edge.To}
		if seen[key] {
			return
		}
		seen[key] = true
		edges = append(edges, edge)
	}

	for _, atom := range atoms {
		for _, dep := range atom.DependencyIDs {
			if _, known := index[dep]; !known {
				return nil, fmt.Errorf("atom %s depends on unknown atom %s", atom.ID, dep)
			}
			add(models.DependencyEdge{From: dep, To: atom.ID, Kind: models.EdgeExplicit})
		}
	}
	for _, edge := range crudEdges(atoms) {
		add(edge)
	}
	for _, edge := range b.patternEdges(atoms) {
		add(edge)
	}
	return edges, nil
}

// crudEdges orders entity producers before consumers. An atom produces
// entity E when it declares E as an output without also consuming it as an
// input; every atom declaring E as an input waits for every producer of E.
func crudEdges(atoms []*models.AtomicUnit) []models.DependencyEdge {
	producers := make(map[string][]string)
	consumers := make(map[string][]string)
	for _, atom := range atoms {
		for entity := range atom.DeclaredOutputs {
			if _, consumed := atom.DeclaredInputs[entity]; !consumed {
				producers[entity] = append(producers[entity], atom.ID)
			}
		}
		for entity := range atom.DeclaredInputs {
			consumers[entity] = append(consumers[entity], atom.ID)
		}
	}

	entities := make([]string, 0, len(producers))
	for entity := range producers {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	var edges []models.DependencyEdge
	for _, entity := range entities {
		from := append([]string(nil), producers[entity]...)
		to := append([]string(nil), consumers[entity]...)
		sort.Strings(from)
		sort.Strings(to)
		for _, producer := range from {
			for _, consumer := range to {
				if producer == consumer {
					continue
				}
				edges = append(edges, models.DependencyEdge{
					From: producer,
					To:   consumer,
					Kind: models.EdgeCRUDInferred,
				})
			}
		}
	}
	return edges
}

// patternEdges applies the operation-sequencing rules: for each rule and
// entity, every atom performing the rule's Then verb on the entity waits
// for every atom performing its First verb on it.
func (b *Builder) patternEdges(atoms []*models.AtomicUnit) []models.DependencyEdge {
	type opKey struct{ verb, entity string }
	byOp := make(map[opKey][]string)
	for _, atom := range atoms {
		listed := make(map[opKey]bool)
		for _, op := range operationsOf(atom.SourceFragment) {
			key := opKey{op.verb, op.entity}
			if listed[key] {
				continue
			}
			listed[key] = true
			byOp[key] = append(byOp[key], atom.ID)
		}
	}

	var edges []models.DependencyEdge
	for _, rule := range b.rules {
		entities := make([]string, 0)
		for key := range byOp {
			if key.verb == rule.First {
				entities = append(entities, key.entity)
			}
		}
		sort.Strings(entities)

		for _, entity := range entities {
			firsts := append([]string(nil), byOp[opKey{rule.First, entity}]...)
			thens := append([]string(nil), byOp[opKey{rule.Then, entity}]...)
			sort.Strings(firsts)
			sort.Strings(thens)
			for _, first := range firsts {
				for _, then := range thens {
					if first == then {
						continue
					}
					edges = append(edges, models.DependencyEdge{
						From: first,
						To:   then,
						Kind: models.EdgePatternInferred,
					})
				}
			}
		}
	}
	return edges
}

// operation is one (verb, entity) pair extracted from a fragment.
type operation struct {
	verb   string
	entity string
}

var callWithArgs = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_.]*)\(([^()]*)\)`)

// operationsOf extracts the operations a fragment performs from its call
// expressions. "cart.add(item)" is verb add on entity cart;
// "createCart(session)" splits its name into verb create and entity cart;
// a bare verb such as "open(file)" takes its entity from the first
// argument. Verbs and entities compare lowercased.
func operationsOf(fragment string) []operation {
	var ops []operation
	for _, match := range callWithArgs.FindAllStringSubmatch(fragment, -1) {
		name, args := match[1], match[2]

		if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
			entity := name[:dot]
			if root := strings.IndexByte(entity, '.'); root > 0 {
				entity = entity[:root]
			}
			ops = append(ops, operation{
				verb:   strings.ToLower(name[dot+1:]),
				entity: strings.ToLower(entity),
			})
			continue
		}

		words := splitName(name)
		if len(words) >= 2 {
			ops = append(ops, operation{verb: words[0], entity: words[len(words)-1]})
			continue
		}
		if len(words) == 1 {
			if entity := firstArgRoot(args); entity != "" {
				ops = append(ops, operation{verb: words[0], entity: entity})
			}
		}
	}
	return ops
}

// splitName lowers a camelCase or snake_case identifier into words.
func splitName(name string) []string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, strings.ToLower(string(current)))
			current = current[:0]
		}
	}
	for _, r := range name {
		switch {
		case r == '_':
			flush()
		case unicode.IsUpper(r):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	return words
}

// firstArgRoot returns the root identifier of a call's first argument,
// lowercased, or "" when the argument is not a plain identifier.
func firstArgRoot(args string) string {
	first := args
	if comma := strings.IndexByte(first, ','); comma >= 0 {
		first = first[:comma]
	}
	first = strings.TrimSpace(first)
	if dot := strings.IndexByte(first, '.'); dot > 0 {
		first = first[:dot]
	}
	if first == "" || !identName.MatchString(first) {
		return ""
	}
	return strings.ToLower(first)
}

var identName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
