package parse

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoTreeSitterExtractor parses a Go added-lines snippet with tree-sitter's
// error-tolerant Go grammar, extracting function/method/type definitions,
// imports, and same-snippet call edges. Calls whose target wasn't defined
// in the snippet are returned as UnresolvedCall for cross-file resolution.
type GoTreeSitterExtractor struct{}

func (GoTreeSitterExtractor) Extract(filePath, snippet string) (Extraction, error) {
	content := []byte(snippet)

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return Extraction{}, err
	}
	defer tree.Close()

	root := tree.RootNode()

	ext := Extraction{Package: extractGoPackageName(root, content)}
	ext.Imports = extractGoImports(root, content)

	funcNameToNode := map[string]*sitter.Node{}
	walkGoDefs(root, content, &ext, funcNameToNode)
	walkGoTypes(root, content, &ext)

	for name, node := range funcNameToNode {
		calls, unresolved := extractGoCalls(node, content, name, funcNameToNode)
		ext.Calls = append(ext.Calls, calls...)
		ext.Unresolved = append(ext.Unresolved, unresolved...)
	}

	return ext, nil
}

func extractGoPackageName(root *sitter.Node, content []byte) string {
	if root == nil {
		return ""
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() == "package_clause" {
			if name := child.ChildByFieldName("name"); name != nil {
				return string(content[name.StartByte():name.EndByte()])
			}
		}
	}
	return ""
}

func extractGoImports(root *sitter.Node, content []byte) []string {
	var imports []string
	if root == nil {
		return imports
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "import_declaration" {
			continue
		}
		collectImportSpecs(child, content, &imports)
	}
	return imports
}

func collectImportSpecs(node *sitter.Node, content []byte, imports *[]string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_spec":
			if path := child.ChildByFieldName("path"); path != nil {
				*imports = append(*imports, strings.Trim(string(content[path.StartByte():path.EndByte()]), `"`))
			}
		case "import_spec_list":
			collectImportSpecs(child, content, imports)
		}
	}
}

func walkGoDefs(node *sitter.Node, content []byte, ext *Extraction, funcNameToNode map[string]*sitter.Node) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "function_declaration":
		if name := node.ChildByFieldName("name"); name != nil {
			n := string(content[name.StartByte():name.EndByte()])
			ext.Defs = append(ext.Defs, Definition{
				Name:     n,
				Kind:     DefFunction,
				Line:     int(node.StartPoint().Row) + 1,
				Exported: isExported(n),
			})
			funcNameToNode[n] = node
		}
	case "method_declaration":
		if name := node.ChildByFieldName("name"); name != nil {
			n := string(content[name.StartByte():name.EndByte()])
			ext.Defs = append(ext.Defs, Definition{
				Name:     n,
				Kind:     DefMethod,
				Line:     int(node.StartPoint().Row) + 1,
				Exported: isExported(n),
			})
			funcNameToNode[n] = node
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkGoDefs(node.Child(i), content, ext, funcNameToNode)
	}
}

func walkGoTypes(node *sitter.Node, content []byte, ext *Extraction) {
	if node == nil {
		return
	}

	if node.Type() == "type_spec" {
		if name := node.ChildByFieldName("name"); name != nil {
			n := string(content[name.StartByte():name.EndByte()])
			kind := DefClass
			if typeNode := node.ChildByFieldName("type"); typeNode != nil {
				if typeNode.Type() == "interface_type" {
					kind = DefInterface
					ext.Derived = append(ext.Derived, embeddedInterfaceEdges(typeNode, content, n)...)
				} else if typeNode.Type() == "struct_type" {
					ext.Derived = append(ext.Derived, embeddedStructEdges(typeNode, content, n)...)
				}
			}
			ext.Defs = append(ext.Defs, Definition{
				Name:     n,
				Kind:     kind,
				Line:     int(node.StartPoint().Row) + 1,
				Exported: isExported(n),
			})
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkGoTypes(node.Child(i), content, ext)
	}
}

// embeddedStructEdges treats an embedded field as a derived-from edge:
// the embedding struct "derives" from the embedded type.
func embeddedStructEdges(structType *sitter.Node, content []byte, structName string) []DerivedRef {
	var derived []DerivedRef
	for i := 0; i < int(structType.ChildCount()); i++ {
		fieldList := structType.Child(i)
		if fieldList.Type() != "field_declaration_list" {
			continue
		}
		for j := 0; j < int(fieldList.ChildCount()); j++ {
			field := fieldList.Child(j)
			if field.Type() != "field_declaration" {
				continue
			}
			hasName := false
			for k := 0; k < int(field.ChildCount()); k++ {
				if field.Child(k).Type() == "field_identifier" {
					hasName = true
				}
			}
			if hasName {
				continue
			}
			if typeNode := field.ChildByFieldName("type"); typeNode != nil {
				base := strings.TrimPrefix(string(content[typeNode.StartByte():typeNode.EndByte()]), "*")
				derived = append(derived, DerivedRef{Base: base, Derived: structName})
			}
		}
	}
	return derived
}

// embeddedInterfaceEdges treats an interface's embedded interfaces as
// base types of the embedding interface.
func embeddedInterfaceEdges(ifaceType *sitter.Node, content []byte, ifaceName string) []DerivedRef {
	var derived []DerivedRef
	for i := 0; i < int(ifaceType.ChildCount()); i++ {
		child := ifaceType.Child(i)
		if child.Type() == "type_identifier" || child.Type() == "qualified_type" {
			base := string(content[child.StartByte():child.EndByte()])
			derived = append(derived, DerivedRef{Base: base, Derived: ifaceName})
		}
	}
	return derived
}

func extractGoCalls(fnNode *sitter.Node, content []byte, callerName string, funcNameToNode map[string]*sitter.Node) ([]CallRef, []UnresolvedCall) {
	body := fnNode.ChildByFieldName("body")
	if body == nil {
		return nil, nil
	}

	var calls []CallRef
	var unresolved []UnresolvedCall
	seenLocal := map[string]bool{}
	seenUnresolved := map[string]bool{}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				simple, full := calleeNames(fn, content)
				if simple != "" {
					if _, ok := funcNameToNode[simple]; ok {
						key := callerName + "->" + simple
						if !seenLocal[key] {
							seenLocal[key] = true
							calls = append(calls, CallRef{CallerName: callerName, CalleeName: simple})
						}
					} else if full != "" {
						key := callerName + "->" + full
						if !seenUnresolved[key] {
							seenUnresolved[key] = true
							unresolved = append(unresolved, UnresolvedCall{
								CallerName: callerName,
								CalleeName: full,
								Line:       int(n.StartPoint().Row) + 1,
							})
						}
					}
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)

	return calls, unresolved
}

func calleeNames(node *sitter.Node, content []byte) (simple, full string) {
	switch node.Type() {
	case "identifier":
		name := string(content[node.StartByte():node.EndByte()])
		return name, name
	case "selector_expression":
		full = string(content[node.StartByte():node.EndByte()])
		if field := node.ChildByFieldName("field"); field != nil {
			simple = string(content[field.StartByte():field.EndByte()])
		}
		return simple, full
	}
	return "", ""
}

func isExported(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}
