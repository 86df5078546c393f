// Copyright © 2024 The ELPS authors

package analysis

import (
	"sort"
	"strings"
	"sync"
)

// Public vars of the core namespaces that need no source file to resolve.
// Names shared by both dialects are listed once.
var (
	coreMacros = `and as-> assert binding case cond cond-> cond->> condp
		comment declare defmacro defmethod defmulti defn defn- defonce
		defprotocol defrecord defstruct deftype delay doseq dotimes doto
		extend-protocol extend-type fn for if-let if-not if-some import io!
		lazy-cat lazy-seq let letfn loop memfn ns or proxy reify some->
		some->> time when when-first when-let when-not when-some while
		with-open with-out-str with-redefs -> ->> .. future locking
		with-local-vars with-meta`

	coreFns = `* *' + +' - -' / < <= = == > >= aget alength alter
		alter-meta! apply array-map aset assoc assoc! assoc-in atom bit-and
		bit-or bit-shift-left bit-shift-right bit-xor boolean butlast char
		class coll? comp comparator compare compare-and-set! complement
		concat conj conj! cons constantly contains? count counted? cycle dec
		dedupe deref disj dissoc distinct doall dorun double drop drop-last
		drop-while empty empty? every-pred every? ex-data ex-info ex-message
		false? ffirst filter filterv find first flatten float fn? fnext
		format frequencies gensym get get-in group-by hash hash-map hash-set
		identical? identity inc instance? int interleave interpose into
		into-array iterate juxt keep keep-indexed key keys keyword keyword?
		last list list* long map map-indexed map? mapcat mapv max max-key
		merge merge-with meta min min-key mod name namespace neg? next nfirst
		nil? nnext not not-any? not-empty not-every? not= nth nthnext nthrest
		num number? odd? even? partial partition partition-all partition-by
		peek persistent! pop pos? pr pr-str prn prn-str print println
		println-str quot rand rand-int rand-nth range re-find re-matches
		re-pattern re-seq reduce reduce-kv reductions rem remove repeat
		repeatedly reset! rest reverse rseq second select-keys seq seq? seqable?
		sequence sequential? set set? shuffle some some-fn sort sort-by split-at
		split-with str string? subs subvec swap! symbol symbol? take take-last
		take-nth take-while transient tree-seq true? type update update-in
		val vals vec vector vector? vary-meta volatile! vreset! vswap! zero?
		zipmap add-watch remove-watch require use refer refer-clojure alias
		in-ns create-ns find-ns the-ns resolve ns-resolve intern eval
		macroexpand macroexpand-1 var-get var-set`

	hostOnlyFns = `agent send send-off await slurp spit load-file
		load-string read-string bigdec bigint biginteger class? bean
		pmap pcalls pvalues future-call deliver promise shutdown-agents
		seque re-matcher re-groups`

	scriptOnlyFns = `clj->js js->clj js-obj js-keys array aclone
		make-array obj? undefined? array? regexp? random-uuid uuid
		implements? satisfies? specify specify! js-delete goog-define`

	coreDynamic = `*out* *err* *in* *ns* *1 *2 *3 *e *print-length*
		*print-level* *assert* *data-readers* *warn-on-reflection*
		*unchecked-math* *clojure-version* *command-line-args* *file*`
)

var (
	coreOnce sync.Once
	coreDefs map[Dialect][]*Definition
)

// CoreDefinitions returns the catalogued public vars of the core namespace
// of d, sorted by name.  The result is shared and must not be modified.
func CoreDefinitions(d Dialect) []*Definition {
	coreOnce.Do(func() {
		coreDefs = map[Dialect][]*Definition{
			Host:   buildCore(Host, hostOnlyFns),
			Script: buildCore(Script, scriptOnlyFns),
		}
	})
	return coreDefs[d]
}

func buildCore(d Dialect, extra string) []*Definition {
	ns := d.CoreNamespace()
	seen := make(map[string]bool)
	var defs []*Definition
	add := func(words, typ string, meta map[string]string) {
		for _, w := range strings.Fields(words) {
			if seen[w] {
				continue
			}
			seen[w] = true
			defs = append(defs, &Definition{
				Key:  SymbolKey{Name: w, Namespace: ns, Type: typ},
				Meta: meta,
				File: ns,
			})
		}
	}
	add(coreMacros, "defmacro", nil)
	add(coreFns, "defn", nil)
	add(extra, "defn", nil)
	add(coreDynamic, "def", map[string]string{MetaDynamic: "true"})
	sort.Slice(defs, func(i, j int) bool { return defs[i].Key.Name < defs[j].Key.Name })
	return defs
}

// LookupCore returns the catalogued core var name of d.
func LookupCore(d Dialect, name string) *Definition {
	defs := CoreDefinitions(d)
	i := sort.Search(len(defs), func(i int) bool { return defs[i].Key.Name >= name })
	if i < len(defs) && defs[i].Key.Name == name {
		return defs[i]
	}
	return nil
}
