// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package supplychain

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/AleutianAI/depsentry/cmd/depsentry/internal/model"
)

// Node types that count as literal arguments. eval("...") is ugly but
// static; eval(x) can execute anything.
var literalArgTypes = map[string]bool{
	"string":          true,
	"template_string": true,
	"number":          true,
	"true":            true,
	"false":           true,
	"null":            true,
}

// jsASTFindings parses JavaScript and flags eval() calls and Function
// constructors whose arguments are not literals. The regex patterns
// catch the common spellings; the AST pass catches the reformatted
// ones.
func jsASTFindings(ctx context.Context, src []byte, location string) []model.PatternMatch {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil
	}

	var findings []model.PatternMatch
	walkJS(root, func(node *sitter.Node) {
		switch node.Type() {
		case "call_expression":
			fn := node.ChildByFieldName("function")
			if fn == nil || fn.Type() != "identifier" {
				return
			}
			if string(src[fn.StartByte():fn.EndByte()]) != "eval" {
				return
			}
			if hasNonLiteralArg(node.ChildByFieldName("arguments")) {
				findings = append(findings, model.PatternMatch{
					Type:        "eval_nonliteral_ast",
					Severity:    model.PatternHigh,
					Description: "eval() with non-literal argument",
					File:        location,
				})
			}
		case "new_expression":
			ctor := node.ChildByFieldName("constructor")
			if ctor == nil || ctor.Type() != "identifier" {
				return
			}
			if string(src[ctor.StartByte():ctor.EndByte()]) != "Function" {
				return
			}
			if hasNonLiteralArg(node.ChildByFieldName("arguments")) {
				findings = append(findings, model.PatternMatch{
					Type:        "function_constructor_ast",
					Severity:    model.PatternCritical,
					Description: "Function constructor with non-literal argument",
					File:        location,
				})
			}
		}
	})
	return findings
}

func walkJS(node *sitter.Node, visit func(*sitter.Node)) {
	visit(node)
	for i := 0; i < int(node.ChildCount()); i++ {
		walkJS(node.Child(i), visit)
	}
}

func hasNonLiteralArg(args *sitter.Node) bool {
	if args == nil {
		return false
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if !literalArgTypes[args.NamedChild(i).Type()] {
			return true
		}
	}
	return false
}
