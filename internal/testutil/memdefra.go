package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MemDefra is an in-memory stand-in for the DefraDB GraphQL endpoint. It
// understands the query shapes the defra package builds: single-collection
// queries with _eq filters, an optional order, limit and offset, and create,
// update, delete and upsert mutations with flat inputs.
type MemDefra struct {
	mu      sync.Mutex
	docs    map[string][]map[string]any
	queries []string
	schemas []string
	nextID  int
}

// NewMemDefra starts a MemDefra server closed at test cleanup. It returns the
// store and the server URL.
func NewMemDefra(t interface {
	Helper()
	Cleanup(func())
}) (*MemDefra, string) {
	t.Helper()
	m := &MemDefra{docs: make(map[string][]map[string]any)}
	srv := httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(srv.Close)
	return m, srv.URL
}

// Seed adds a document to a collection and returns its ID. A "_docID" in doc
// is kept.
func (m *MemDefra) Seed(collection string, doc map[string]any) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(collection, doc)
}

// Docs returns a copy of a collection's documents.
func (m *MemDefra) Docs(collection string) []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, 0, len(m.docs[collection]))
	for _, d := range m.docs[collection] {
		c := make(map[string]any, len(d))
		for k, v := range d {
			c[k] = v
		}
		out = append(out, c)
	}
	return out
}

// Queries returns every request received, in order.
func (m *MemDefra) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Schemas returns the SDL documents added, in order.
func (m *MemDefra) Schemas() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.schemas...)
}

// Mutations returns the received mutations matching prefix, e.g.
// "upsert_ReadingPosition".
func (m *MemDefra) Mutations(prefix string) []string {
	var out []string
	for _, q := range m.Queries() {
		if strings.HasPrefix(q, "mutation { "+prefix) {
			out = append(out, q)
		}
	}
	return out
}

func (m *MemDefra) insertLocked(collection string, doc map[string]any) string {
	id, _ := doc["_docID"].(string)
	if id == "" {
		m.nextID++
		id = fmt.Sprintf("bae-%s-%d", strings.ToLower(collection), m.nextID)
	}
	stored := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored["_docID"] = id
	m.docs[collection] = append(m.docs[collection], stored)
	return id
}

var (
	mutationRe   = regexp.MustCompile(`^mutation \{ (create|update|delete|upsert)_(\w+)\(`)
	inputRe      = regexp.MustCompile(`input: (\{.*\})\) \{`)
	docIDRe      = regexp.MustCompile(`docID: "([^"]+)"`)
	upsertRe     = regexp.MustCompile(`filter: \{(\w+): \{_eq: ("(?:[^"\\]|\\.)*")\}\}, create: (\{.*\}), update: (\{.*\})\) \{`)
	collectionRe = regexp.MustCompile(`\{ (\w+)`)
	eqFilterRe   = regexp.MustCompile(`(\w+): \{_eq: \$(\w+)\}`)
	orderRe      = regexp.MustCompile(`order: \{(\w+): (ASC|DESC)\}`)
	limitRe      = regexp.MustCompile(`limit: (\d+)`)
	offsetRe     = regexp.MustCompile(`offset: (\d+)`)
	inputFieldRe = regexp.MustCompile(`(\w+): ("(?:[^"\\]|\\.)*"|[^,{}]+)`)
)

func (m *MemDefra) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health-check":
		w.WriteHeader(http.StatusOK)
		return
	case "/api/v0/schema":
		sdl, _ := io.ReadAll(r.Body)
		m.mu.Lock()
		m.schemas = append(m.schemas, string(sdl))
		m.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		return
	}

	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.queries = append(m.queries, req.Query)
	var data map[string]any
	if match := mutationRe.FindStringSubmatch(req.Query); match != nil {
		data = m.mutateLocked(match[1], match[2], req.Query)
	} else {
		data = m.queryLocked(req.Query, req.Variables)
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func (m *MemDefra) mutateLocked(op, collection, query string) map[string]any {
	key := op + "_" + collection
	result := func(id string) map[string]any {
		return map[string]any{key: []any{map[string]any{"_docID": id}}}
	}

	switch op {
	case "create":
		match := inputRe.FindStringSubmatch(query)
		if match == nil {
			return map[string]any{key: []any{}}
		}
		return result(m.insertLocked(collection, parseInput(match[1])))

	case "update":
		id := firstGroup(docIDRe, query)
		match := inputRe.FindStringSubmatch(query)
		for _, d := range m.docs[collection] {
			if d["_docID"] == id && match != nil {
				for k, v := range parseInput(match[1]) {
					d[k] = v
				}
			}
		}
		return result(id)

	case "delete":
		id := firstGroup(docIDRe, query)
		docs := m.docs[collection]
		for i, d := range docs {
			if d["_docID"] == id {
				m.docs[collection] = append(docs[:i:i], docs[i+1:]...)
				break
			}
		}
		return result(id)

	case "upsert":
		match := upsertRe.FindStringSubmatch(query)
		if match == nil {
			return map[string]any{key: []any{}}
		}
		field, value := match[1], parseValue(match[2])
		for _, d := range m.docs[collection] {
			if d[field] == value {
				for k, v := range parseInput(match[4]) {
					d[k] = v
				}
				return result(d["_docID"].(string))
			}
		}
		return result(m.insertLocked(collection, parseInput(match[3])))
	}
	return nil
}

func (m *MemDefra) queryLocked(query string, vars map[string]any) map[string]any {
	collection := firstGroup(collectionRe, query)

	var out []any
	for _, d := range m.docs[collection] {
		matched := true
		for _, f := range eqFilterRe.FindAllStringSubmatch(query, -1) {
			if !equalValues(d[f[1]], vars[f[2]]) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, d)
		}
	}

	if order := orderRe.FindStringSubmatch(query); order != nil {
		field, desc := order[1], order[2] == "DESC"
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := toFloat(out[i].(map[string]any)[field])
			b, _ := toFloat(out[j].(map[string]any)[field])
			if desc {
				return a > b
			}
			return a < b
		})
	}
	if n, err := strconv.Atoi(firstGroup(offsetRe, query)); err == nil {
		out = out[min(n, len(out)):]
	}
	if n, err := strconv.Atoi(firstGroup(limitRe, query)); err == nil {
		out = out[:min(n, len(out))]
	}
	if out == nil {
		out = []any{}
	}
	return map[string]any{collection: out}
}

func firstGroup(re *regexp.Regexp, s string) string {
	if match := re.FindStringSubmatch(s); match != nil {
		return match[1]
	}
	return ""
}

func equalValues(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// parseInput reads a flat GraphQL input object.
func parseInput(s string) map[string]any {
	out := make(map[string]any)
	for _, f := range inputFieldRe.FindAllStringSubmatch(s, -1) {
		out[f[1]] = parseValue(strings.TrimSpace(f[2]))
	}
	return out
}

func parseValue(v string) any {
	if strings.HasPrefix(v, `"`) {
		var s string
		if err := json.Unmarshal([]byte(v), &s); err == nil {
			return s
		}
		return strings.Trim(v, `"`)
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
