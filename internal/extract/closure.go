package extract

import "sort"

// Closure computes the transitive type-name closure of the desired
// functions over the available type nodes.
//
// The returned set contains every name reachable from the functions'
// signatures through type definitions, including names that no
// available node defines. Those unresolved names stay in the set so the
// planner can create placeholder definitions for them.
type Closure struct {
	memo *DepMemo
}

// NewClosure creates a closure calculator over the shared memo.
func NewClosure(memo *DepMemo) *Closure {
	return &Closure{memo: memo}
}

// Names runs the fixpoint: the frontier starts from the functions'
// direct dependencies; each round expands through every available node
// whose name or alias is newly reached, until a round adds nothing.
// Iteration over the type map is in sorted name order so the result is
// stable run to run.
func (c *Closure) Names(functions map[string]*Node, types map[string]*Node) map[string]struct{} {
	frontier := make(map[string]struct{})
	for _, name := range SortedNames(functions) {
		for _, dep := range c.memo.Names(functions[name]) {
			frontier[dep] = struct{}{}
		}
	}

	searched := make(map[string]struct{})
	typeNames := SortedNames(types)

	for {
		unsearched := subtract(frontier, searched)
		if len(unsearched) == 0 {
			break
		}

		next := make(map[string]struct{})
		for _, name := range typeNames {
			node := types[name]
			if !reaches(node, unsearched) {
				continue
			}
			for _, dep := range c.memo.Names(node) {
				next[dep] = struct{}{}
			}
			// The node and all its aliases are resolved by this node;
			// a later frontier never needs to visit them again.
			searched[node.Name] = struct{}{}
			for _, alias := range node.Aliases {
				searched[alias] = struct{}{}
			}
		}

		// Names no node resolved are still settled: they are the
		// unresolved leaves of the closure.
		for name := range unsearched {
			searched[name] = struct{}{}
		}
		frontier = next
	}

	return searched
}

// reaches reports whether the node's primary name or any alias is in
// the name set.
func reaches(n *Node, names map[string]struct{}) bool {
	if _, ok := names[n.Name]; ok {
		return true
	}
	for _, alias := range n.Aliases {
		if _, ok := names[alias]; ok {
			return true
		}
	}
	return false
}

func subtract(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; !ok {
			out[k] = struct{}{}
		}
	}
	return out
}

// SortedSet returns a name set as a sorted slice.
func SortedSet(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
