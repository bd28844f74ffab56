package components

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"pagegen/internal/logging"
)

// ParsedComponent is what the TypeScript source tells us about a component
// without asking a model.
type ParsedComponent struct {
	ClassName string
	Selector  string
	Inputs    []string
	Outputs   []string
}

// selectorPattern is the fallback when the syntax tree yields no selector.
var selectorPattern = regexp.MustCompile(`selector\s*:\s*['"]([^'"]+)['"]`)

// Parser extracts Angular component facts from TypeScript using Tree-sitter.
// A tree-sitter parser is not safe for concurrent use, so calls are serialised.
type Parser struct {
	mu       sync.Mutex
	tsParser *sitter.Parser
}

// NewParser creates a TypeScript parser.
func NewParser() *Parser {
	tsParser := sitter.NewParser()
	tsParser.SetLanguage(typescript.GetLanguage())
	return &Parser{tsParser: tsParser}
}

// Parse extracts the decorated class name, its @Component selector and the
// names of its inputs and outputs. Decorator inputs (@Input/@Output) and
// signal inputs (input(), input.required(), model(), output()) are both
// recognised; a string alias argument replaces the property name.
func (p *Parser) Parse(ctx context.Context, content []byte) (*ParsedComponent, error) {
	start := time.Now()

	p.mu.Lock()
	tree, err := p.tsParser.ParseCtx(ctx, nil, content)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	pc := &ParsedComponent{}
	var firstClass string
	w := &walker{content: content, out: pc, firstClass: &firstClass}
	w.walk(tree.RootNode())

	if pc.ClassName == "" {
		pc.ClassName = firstClass
	}
	if pc.Selector == "" {
		if m := selectorPattern.FindSubmatch(content); m != nil {
			pc.Selector = string(m[1])
		}
	}
	pc.Inputs = dedupe(pc.Inputs)
	pc.Outputs = dedupe(pc.Outputs)

	logging.ComponentsDebug("Parser: %s selector=%q inputs=%d outputs=%d in %v",
		pc.ClassName, pc.Selector, len(pc.Inputs), len(pc.Outputs), time.Since(start))
	return pc, nil
}

type walker struct {
	content    []byte
	out        *ParsedComponent
	firstClass *string
}

func (w *walker) text(n *sitter.Node) string {
	return string(w.content[n.StartByte():n.EndByte()])
}

func (w *walker) walk(node *sitter.Node) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "class_declaration":
		if *w.firstClass == "" {
			if name := node.ChildByFieldName("name"); name != nil {
				*w.firstClass = w.text(name)
			}
		}

	case "decorator":
		w.handleDecorator(node)

	case "public_field_definition":
		w.handleSignalField(node)
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.walk(node.NamedChild(i))
	}
}

func (w *walker) handleDecorator(dec *sitter.Node) {
	name, args := w.decoratorCall(dec)
	switch name {
	case "Component":
		if w.out.ClassName == "" {
			w.out.ClassName = w.decoratedClass(dec)
		}
		if w.out.Selector == "" && args != nil {
			w.out.Selector = w.objectProperty(args, "selector")
		}

	case "Input", "Output":
		member := w.decoratedMember(dec)
		if member == "" {
			return
		}
		if alias := w.firstStringArg(args); alias != "" {
			member = alias
		}
		if name == "Input" {
			w.out.Inputs = append(w.out.Inputs, member)
		} else {
			w.out.Outputs = append(w.out.Outputs, member)
		}
	}
}

// decoratorCall returns the decorator's callee name and its argument list.
func (w *walker) decoratorCall(dec *sitter.Node) (string, *sitter.Node) {
	for i := 0; i < int(dec.NamedChildCount()); i++ {
		child := dec.NamedChild(i)
		switch child.Type() {
		case "call_expression":
			fn := child.ChildByFieldName("function")
			if fn == nil {
				return "", nil
			}
			return lastSegment(w.text(fn)), child.ChildByFieldName("arguments")
		case "identifier", "member_expression":
			return lastSegment(w.text(child)), nil
		}
	}
	return "", nil
}

// decoratedClass finds the class a @Component decorator is attached to.
// Decorators written before "export" belong to the export statement.
func (w *walker) decoratedClass(dec *sitter.Node) string {
	parent := dec.Parent()
	if parent == nil {
		return ""
	}
	cls := parent
	if parent.Type() == "export_statement" {
		cls = parent.ChildByFieldName("declaration")
	}
	if cls == nil {
		return ""
	}
	if name := cls.ChildByFieldName("name"); name != nil {
		return w.text(name)
	}
	return ""
}

// decoratedMember finds the property or accessor an @Input/@Output decorates.
func (w *walker) decoratedMember(dec *sitter.Node) string {
	parent := dec.Parent()
	if parent == nil {
		return ""
	}
	switch parent.Type() {
	case "public_field_definition", "method_definition":
		if name := parent.ChildByFieldName("name"); name != nil {
			return w.text(name)
		}
	case "class_body":
		// Method decorators are siblings of the method in the class body.
		for sib := dec.NextNamedSibling(); sib != nil; sib = sib.NextNamedSibling() {
			if sib.Type() == "decorator" {
				continue
			}
			if sib.Type() == "method_definition" || sib.Type() == "public_field_definition" {
				if name := sib.ChildByFieldName("name"); name != nil {
					return w.text(name)
				}
			}
			break
		}
	}
	return ""
}

// handleSignalField recognises `name = input(...)` style declarations.
func (w *walker) handleSignalField(field *sitter.Node) {
	value := field.ChildByFieldName("value")
	if value == nil || value.Type() != "call_expression" {
		return
	}
	fn := value.ChildByFieldName("function")
	nameNode := field.ChildByFieldName("name")
	if fn == nil || nameNode == nil {
		return
	}
	name := w.text(nameNode)
	if alias := w.aliasOption(value.ChildByFieldName("arguments")); alias != "" {
		name = alias
	}

	callee := w.text(fn)
	if i := strings.IndexByte(callee, '<'); i >= 0 {
		callee = callee[:i]
	}
	switch callee {
	case "input", "input.required":
		w.out.Inputs = append(w.out.Inputs, name)
	case "model", "model.required":
		w.out.Inputs = append(w.out.Inputs, name)
		w.out.Outputs = append(w.out.Outputs, name+"Change")
	case "output", "outputFromObservable":
		w.out.Outputs = append(w.out.Outputs, name)
	}
}

// objectProperty returns the string value of key in the first object
// literal among args.
func (w *walker) objectProperty(args *sitter.Node, key string) string {
	for i := 0; i < int(args.NamedChildCount()); i++ {
		obj := args.NamedChild(i)
		if obj.Type() != "object" {
			continue
		}
		for j := 0; j < int(obj.NamedChildCount()); j++ {
			pair := obj.NamedChild(j)
			if pair.Type() != "pair" {
				continue
			}
			k := pair.ChildByFieldName("key")
			v := pair.ChildByFieldName("value")
			if k == nil || v == nil || unquote(w.text(k)) != key {
				continue
			}
			if v.Type() == "string" || v.Type() == "template_string" {
				return unquote(w.text(v))
			}
		}
	}
	return ""
}

// aliasOption reads {alias: '...'} from signal input options.
func (w *walker) aliasOption(args *sitter.Node) string {
	if args == nil {
		return ""
	}
	return w.objectProperty(args, "alias")
}

func (w *walker) firstStringArg(args *sitter.Node) string {
	if args == nil {
		return ""
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "string":
			return unquote(w.text(arg))
		case "object":
			return w.objectProperty(args, "alias")
		}
	}
	return ""
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"' || first == '`') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func lastSegment(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
