package frp

// trail is the chain of evaluations in progress on one call stack, innermost
// first. Nodes are immutable and shared by the handles passed to behaviors.
// Storage sections are pushed with an empty label.
type trail struct {
	parent *trail
	token  any
	label  string
}

func (t *trail) push(token any, label string) *trail {
	return &trail{parent: t, token: token, label: label}
}

func (t *trail) contains(token any) bool {
	for n := t; n != nil; n = n.parent {
		if n.token == token {
			return true
		}
	}
	return false
}

// top returns the label of the innermost evaluation.
func (t *trail) top() string {
	for n := t; n != nil; n = n.parent {
		if n.label != "" {
			return n.label
		}
	}
	return ""
}

// path returns the property labels from the outermost evaluation inward.
func (t *trail) path() []string {
	var out []string
	for n := t; n != nil; n = n.parent {
		if n.label == "" {
			continue
		}
		out = append(out, n.label)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (t *trail) depth() int {
	n := 0
	for ; t != nil; t = t.parent {
		n++
	}
	return n
}
