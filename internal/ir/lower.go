package ir

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"github.com/narval-lang/narval/internal/ast"
	"github.com/narval-lang/narval/internal/checker"
)

// Lower translates a checked Program into a low-level module named
// moduleName (spec §4.6). c must already have run CheckProgram(prog) so its
// UnificationContext holds every expression's resolved type.
func Lower(prog *ast.Program, c *checker.Checker, moduleName string) (*ir.Module, error) {
	gc := NewGenContext(moduleName, c)

	entry := gc.Module.NewFunc("main.start", types.I32)
	gc.Func = entry
	gc.Block = entry.NewBlock("entry")

	initFn := gc.Module.NewFunc("program.global.init", types.Void)
	initBlock := initFn.NewBlock("entry")

	gc.Block.NewCall(initFn)

	var topErr error
	for _, stmt := range prog.Body {
		if err := gc.lowerTopLevelStmt(stmt); err != nil && topErr == nil {
			topErr = err
		}
	}

	for _, step := range gc.globalInit {
		initBlock = step(initBlock)
	}
	if initBlock.Term == nil {
		initBlock.NewRet(nil)
	}

	if gc.Block.Term == nil {
		if len(gc.evalStack) > 0 {
			last := gc.pop()
			gc.Block.NewRet(gc.unboxInt(last))
		} else {
			gc.Block.NewRet(constant.NewInt(types.I32, 0))
		}
	}

	if topErr != nil {
		return gc.Module, fmt.Errorf("lowering failed: %w", topErr)
	}
	return gc.Module, nil
}

// lowerTopLevelStmt handles a statement appearing at module scope, where
// declarations become GlobalVariables instead of allocas and function
// definitions are full IR functions (spec §4.6 "Declaration").
func (gc *GenContext) lowerTopLevelStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.FuncDef:
		return gc.lowerFuncDef(s)
	case *ast.Declaration:
		return gc.lowerGlobalDeclaration(s)
	case *ast.ImportStmt:
		return gc.lowerImport(s)
	default:
		return gc.lowerStmt(stmt)
	}
}
