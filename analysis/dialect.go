// Copyright © 2024 The ELPS authors

package analysis

import (
	"sort"
	"strings"
)

// Dialect is one of the language's platform targets.
type Dialect uint8

const (
	// Host is the JVM dialect (Clojure).
	Host Dialect = iota
	// Script is the JavaScript dialect (ClojureScript).
	Script
)

func (d Dialect) String() string {
	switch d {
	case Host:
		return "clj"
	case Script:
		return "cljs"
	default:
		return "unknown"
	}
}

// CoreNamespace returns the implicitly referred namespace of d.
func (d Dialect) CoreNamespace() string {
	if d == Script {
		return "cljs.core"
	}
	return "clojure.core"
}

// IsSpecialForm reports whether name is a special form of d.
func (d Dialect) IsSpecialForm(name string) bool {
	if d == Script {
		return scriptSpecialForms[name]
	}
	return hostSpecialForms[name]
}

// SpecialForms returns the special form names of d in sorted order.
func (d Dialect) SpecialForms() []string {
	if d == Script {
		return sortedKeys(scriptSpecialForms)
	}
	return sortedKeys(hostSpecialForms)
}

// DialectForFile returns the default dialect for a source file.  Only .cljs
// files default to the script dialect; .cljc files read their host branches
// unless a reader conditional selects otherwise.
func DialectForFile(path string) Dialect {
	if strings.HasSuffix(path, ".cljs") {
		return Script
	}
	return Host
}

// IsMultiDialect reports whether a file may contain code for both dialects.
func IsMultiDialect(path string) bool {
	return strings.HasSuffix(path, ".cljc")
}

// DialectForFeature maps a reader conditional feature keyword to a dialect.
// The second result is false for :default, which inherits the enclosing
// dialect, and for unknown features.
func DialectForFeature(kw string) (Dialect, bool) {
	switch kw {
	case ":clj", ":cljr":
		return Host, true
	case ":cljs":
		return Script, true
	}
	return Host, false
}

// DefaultNamespace is the namespace of a file without an ns form.
const DefaultNamespace = "user"

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func set(words string) map[string]bool {
	m := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		m[w] = true
	}
	return m
}

var (
	hostSpecialForms = set(`def if do quote var recur throw try catch finally
		monitor-enter monitor-exit . new set! fn* let* loop* letfn* case* import*
		reify* deftype* in-ns load-file`)

	scriptSpecialForms = set(`if def fn* do let* loop* letfn* throw try catch
		finally recur new set! ns deftype* defrecord* . js* quote var Infinity
		-Infinity`)

	defAlike = set(`def defn defn- defmacro defonce deftype defrecord defstruct
		defmulti defprotocol def-aset definline definterface define defcurried
		deftype* defrecord* create-ns`)

	fnAlike = set(`fn fn* rfn`)

	letAlike = set(`let let* loop when-let when-some if-let if-some with-open
		when-first with-redefs for doseq dotimes with-local-vars`)

	nsAlike = set(`ns in-ns import require require-macros use refer
		refer-clojure alias`)

	typeAlike = set(`defprotocol definterface deftype defrecord extend-protocol
		extend-type proxy reify`)

	// Forms whose first vector declares fields rather than arguments.
	fieldAlike = set(`deftype defrecord definterface`)

	// Binding forms whose vectors may carry :let/:when/:while modifiers.
	forAlike = set(`for doseq`)

	// Binding forms whose names are visible to every init expression.
	mutualAlike = set(`loop letfn`)

	symbolicValues = set(`Inf -Inf NaN`)

	// Global objects of the script platform that never resolve statically.
	scriptGlobals = set(`js Math goog`)
)

// IsDefAlike reports whether head introduces a definition.
func IsDefAlike(head string) bool { return defAlike[head] }

// IsFnAlike reports whether head creates an anonymous function.
func IsFnAlike(head string) bool { return fnAlike[head] }

// IsLetAlike reports whether head introduces a binding vector.
func IsLetAlike(head string) bool { return letAlike[head] }

// IsNsAlike reports whether head is a namespace or import directive.
func IsNsAlike(head string) bool { return nsAlike[head] }

// IsTypeAlike reports whether head declares or extends a type or protocol.
func IsTypeAlike(head string) bool { return typeAlike[head] }

// IsForAlike reports whether head is a comprehension with binding modifiers.
func IsForAlike(head string) bool { return forAlike[head] }

// IsMutualAlike reports whether all binding names of head are mutually
// visible.
func IsMutualAlike(head string) bool { return mutualAlike[head] }

// IsSymbolicValue reports whether name is a symbolic numeric value.
func IsSymbolicValue(name string) bool { return symbolicValues[name] }

// IsScriptGlobal reports whether ns names a script platform global object.
func IsScriptGlobal(ns string) bool {
	return scriptGlobals[ns] || strings.HasPrefix(ns, "goog.")
}

// IsDynamicName reports whether name has the *earmuffs* shape of a dynamic
// var.
func IsDynamicName(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "*") && strings.HasSuffix(name, "*")
}
