package engine

// QuickJS value tags as reported by GetTag.
const (
	TagBigInt           = -10
	TagSymbol           = -8
	TagString           = -7
	TagFunctionBytecode = -2
	TagObject           = -1
	TagInt              = 0
	TagBool             = 1
	TagNull             = 2
	TagUndefined        = 3
	TagUninitialized    = 4
	TagCatchOffset      = 5
	TagException        = 6
	TagFloat64          = 7
)

// Eval flags.
const (
	EvalGlobal = 0
	EvalModule = 1
)

// Property enumeration flags for GetOwnPropertyNames.
const (
	GPNStringMask = 1 << 0
	GPNSymbolMask = 1 << 1
	GPNEnumOnly   = 1 << 4
)
