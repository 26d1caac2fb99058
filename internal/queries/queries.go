// Package queries holds the fixed set of tree-sitter patterns used to
// recognize C declarations and their type dependencies.
//
// The patterns operate on an already-parsed syntax tree; the catalog
// performs no I/O and is stateless once compiled.
package queries

// Typedef of a struct or union with a body, plus one or more alias
// declarators (with or without pointer wrapping):
//
//	typedef struct name { ... } alias;
//	typedef union name { ... } *a, b;
const TypedefSpecifier = `
(type_definition
  type: (_
    name: (type_identifier) @name
    body: (_) @fields) @specifier
  declarator: (_) @alias) @node
`

// Typedef aliasing a bare tag type (no body):
//
//	typedef struct name alias;
const TypedefTag = `
(type_definition
  type: (_
    name: (type_identifier) @name) @specifier
  declarator: (_) @alias) @node
`

// Typedef of a sized integer type:
//
//	typedef long name;
const TypedefSized = `
(type_definition
  type: (sized_type_specifier)
  declarator: (type_identifier) @name) @node
`

// Typedef of a primitive type:
//
//	typedef int name;
const TypedefPrimitive = `
(type_definition
  type: (primitive_type)
  declarator: (type_identifier) @name) @node
`

// AliasName matches the bare alias identifier inside a typedef
// declarator, stripping any pointer wrapping. Run against a matched
// typedef node.
const AliasName = `
(_ declarator: (type_identifier) @alias_name)
`

// Struct specifier with a body. Forward declarations without a body do
// not match:
//
//	struct name { ... };
const StructSpecifier = `
(struct_specifier
  name: (type_identifier) @name
  body: (field_declaration_list)) @node
`

// Enum specifier with a body:
//
//	enum name { ... };
const EnumSpecifier = `
(enum_specifier
  name: (type_identifier) @name
  body: (enumerator_list)) @node
`

// Function prototype (also matches non-function declarations; the
// FunctionName query filters those out):
//
//	return_type foo(const a *, char b);
const FunctionDeclaration = `
(declaration
  type: (_) @return_type) @node
`

// Function definition with a body.
const FunctionDefinition = `
(function_definition
  type: (_) @return_type) @node
`

// FunctionName recovers the declarator identifier of a callable
// regardless of pointer or array wrapping. Run against a matched
// declaration node.
const FunctionName = `
(_ declarator: (function_declarator
  declarator: (identifier) @name) @node)
`

// ErrorNodes catches any region the parser could not structurally
// resolve. Collected for reporting, never for dependency computation.
const ErrorNodes = `
(ERROR) @error
`

// DependencyFields matches the typed members of a struct/enum body and
// the typed parameters of a function declarator. Two shapes each: a
// plain named type (`Foo x;`) and a specifier-qualified type
// (`struct Foo x;` / `enum Foo x;`), the latter capturing @type so the
// dependency kind can be disambiguated.
const DependencyFields = `
(field_declaration
  type: (type_identifier) @name)
(field_declaration
  type: (_
    name: (type_identifier) @name) @type)
(parameter_declaration
  type: (type_identifier) @name)
(parameter_declaration
  type: (_
    name: (type_identifier) @name) @type)
`
