package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"mumpsdb/core"
	"mumpsdb/embedding"
	"mumpsdb/monitoring"
)

// Authorizer decides whether a session may run a command. When nil, every
// command is allowed.
type Authorizer interface {
	CheckCommand(sess *Session, cmd Command) bool
}

// Replicator receives successful mutations for forwarding to peers. It
// must not block. When nil, mutations are not forwarded.
type Replicator interface {
	OnMutation(kind string, global string, path core.Path, value core.Value)
}

// Options bound executor behavior from configuration
type Options struct {
	DefaultDepth int
	MaxDepth     int
	DefaultTopK  int
	MaxTopK      int
}

// Executor dispatches parsed commands against the store. One executor is
// shared by every session; per-connection state lives in Session.
type Executor struct {
	store     *core.Store
	embed     *embedding.Service
	metrics   *monitoring.Metrics
	functions *functionHandler
	opts      Options
	log       *logrus.Entry

	aof  func(record string)
	auth Authorizer
	repl Replicator
}

// NewExecutor creates an executor over the store
func NewExecutor(store *core.Store, embed *embedding.Service, metrics *monitoring.Metrics, opts Options, log *logrus.Entry) *Executor {
	if opts.DefaultDepth <= 0 {
		opts.DefaultDepth = 1
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 100
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 10
	}
	if opts.MaxTopK < opts.DefaultTopK {
		opts.MaxTopK = opts.DefaultTopK
	}
	return &Executor{
		store:     store,
		embed:     embed,
		metrics:   metrics,
		functions: &functionHandler{store: store},
		opts:      opts,
		log:       log,
	}
}

// SetAOF installs the operation-log appender invoked for every successful
// mutation.
func (e *Executor) SetAOF(append func(record string)) {
	e.aof = append
}

// SetAuthorizer installs the authorization collaborator
func (e *Executor) SetAuthorizer(auth Authorizer) {
	e.auth = auth
}

// SetReplicator installs the replication collaborator
func (e *Executor) SetReplicator(repl Replicator) {
	e.repl = repl
}

// EmbeddingCount returns the collaborator's vector count; 0 when disabled
func (e *Executor) EmbeddingCount() int {
	if e.embed == nil {
		return 0
	}
	return e.embed.Count()
}

// Execute parses and runs one input line for the session. It returns the
// response text and whether the session should close.
func (e *Executor) Execute(sess *Session, line string) (string, bool) {
	cmd := Parse(line)

	if e.metrics != nil {
		e.metrics.CommandsTotal.WithLabelValues(cmd.Type.String()).Inc()
	}

	if cmd.IsError() {
		return "ERROR: " + cmd.Err, false
	}
	if e.auth != nil && !e.auth.CheckCommand(sess, cmd) {
		return "ERROR: permission denied", false
	}

	switch cmd.Type {
	case TypeSet:
		return e.execSet(sess, cmd), false
	case TypeGet:
		return e.execGet(sess, cmd), false
	case TypeKill:
		return e.execKill(sess, cmd), false
	case TypeQuery:
		return e.execQuery(cmd), false
	case TypeWrite:
		return e.execWrite(sess, cmd), false
	case TypeZWrite:
		return e.execZWrite(cmd), false
	case TypeFastSearch:
		return e.execFastSearch(cmd), false
	case TypeExactSearch:
		return e.execExactSearch(cmd), false
	case TypeSimilaritySearch:
		return e.execSimilaritySearch(cmd), false
	case TypeBeginTransaction:
		return e.execBegin(sess), false
	case TypeCommit:
		return e.execCommit(sess), false
	case TypeRollback:
		return e.execRollback(sess), false
	case TypeStats:
		return e.execStats(), false
	case TypeHelp:
		return helpText(), false
	case TypeExit:
		return "BYE", true
	default:
		return "ERROR: Unknown command", false
	}
}

func isLocalName(name string) bool {
	return !strings.HasPrefix(name, "^") && identifierPattern.MatchString(name)
}

func (e *Executor) execSet(sess *Session, cmd Command) string {
	if strings.TrimSpace(cmd.Name) == "" {
		return "ERROR: Global name cannot be empty"
	}
	if cmd.ValueText == "" {
		return "ERROR: Value cannot be empty"
	}

	processed := e.functions.process(sess, cmd.ValueText)
	value := parseValueExpression(processed)

	if isLocalName(cmd.Name) {
		sess.SetLocal(cmd.Name, value)
		return "OK"
	}
	if !strings.HasPrefix(cmd.Name, "^") {
		return "ERROR: Invalid global name: " + cmd.Name
	}

	name := core.NormalizeGlobalName(cmd.Name)
	path := core.NormalizePath(cmd.Path)

	if sess.InTransaction() {
		sess.tx.Set(name, path, value)
		return "OK"
	}

	if err := e.store.Set(name, path, value); err != nil {
		return "ERROR: " + err.Error()
	}
	e.recordMutation("SET", name, path, value)
	if e.embed.Enabled() {
		e.embed.Store(context.Background(), name, path, value)
	}
	return "OK"
}

func (e *Executor) execGet(sess *Session, cmd Command) string {
	if isLocalName(cmd.Name) {
		return "ERROR: GET requires a global name (^name)"
	}

	var v core.Value
	if sess.InTransaction() {
		v = sess.tx.Get(core.NormalizeGlobalName(cmd.Name), core.NormalizePath(cmd.Path))
	} else {
		var err error
		v, err = e.store.Get(cmd.Name, cmd.Path)
		if err != nil {
			return "ERROR: " + err.Error()
		}
	}

	if v.IsNull() {
		return "NULL"
	}
	return v.ZWrite()
}

func (e *Executor) execKill(sess *Session, cmd Command) string {
	if isLocalName(cmd.Name) {
		return "ERROR: KILL requires a global name (^name)"
	}

	name := core.NormalizeGlobalName(cmd.Name)
	path := core.NormalizePath(cmd.Path)

	if sess.InTransaction() {
		sess.tx.Kill(name, path)
		return "OK"
	}

	if err := e.store.Kill(name, path); err != nil {
		return "ERROR: " + err.Error()
	}
	e.recordMutation("KILL", name, path, core.Null)
	if e.embed.Enabled() {
		if len(path) == 0 {
			e.embed.RemoveGlobal(name)
		} else {
			e.embed.Remove(name, path)
		}
	}
	return "OK"
}

func (e *Executor) execQuery(cmd Command) string {
	depth := cmd.Depth
	if depth <= 0 {
		depth = e.opts.DefaultDepth
	}
	if depth > e.opts.MaxDepth {
		depth = e.opts.MaxDepth
	}

	results, err := e.store.Query(cmd.Name, cmd.Path, depth)
	if err != nil {
		return "ERROR: " + err.Error()
	}
	if len(results) == 0 {
		return "NO RESULTS"
	}

	var sb strings.Builder
	sb.WriteString("QUERY RESULTS:\n")
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%3d. ", i+1))
		sb.WriteString(formatQueryResult(r))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("\nTotal: %d result(s)", len(results)))
	return sb.String()
}

func formatQueryResult(r core.QueryResult) string {
	var sb strings.Builder
	if len(r.Path) > 0 {
		sb.WriteString("Path: [")
		for i, s := range r.Path {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(s.ZWrite())
		}
		sb.WriteString("]")
	}
	if !r.Value.IsNull() {
		if len(r.Path) > 0 {
			sb.WriteString(" - ")
		}
		sb.WriteString("Value: ")
		sb.WriteString(r.Value.ZWrite())
	}
	return sb.String()
}

func (e *Executor) execWrite(sess *Session, cmd Command) string {
	parts := splitQuoted(cmd.ValueText)
	var sb strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		switch {
		case isQuoted(part):
			sb.WriteString(unquote(part))
		case strings.HasPrefix(part, "^"):
			name, path, err := parseGlobalRef(part)
			if err != nil {
				return "ERROR: " + err.Error()
			}
			v := e.readValue(sess, name, path)
			sb.WriteString(v.Text())
		case identifierPattern.MatchString(part):
			if v, ok := sess.Local(part); ok {
				sb.WriteString(v.Text())
				continue
			}
			// Unset locals fall back to the same-named global
			v := e.readValue(sess, "^"+part, nil)
			sb.WriteString(v.Text())
		default:
			sb.WriteString(part)
		}
	}
	return sb.String()
}

func (e *Executor) readValue(sess *Session, global string, path core.Path) core.Value {
	if sess.InTransaction() {
		return sess.tx.Get(core.NormalizeGlobalName(global), core.NormalizePath(path))
	}
	v, err := e.store.Get(global, path)
	if err != nil {
		return core.Null
	}
	return v
}

// parseGlobalRef splits "^name(sub1,sub2)" into name and path
func parseGlobalRef(ref string) (string, core.Path, error) {
	open := strings.IndexByte(ref, '(')
	if open == -1 {
		return ref, nil, nil
	}
	if !strings.HasSuffix(ref, ")") {
		return "", nil, fmt.Errorf("malformed global reference: %s", ref)
	}
	return ref[:open], ParsePath(ref[open+1 : len(ref)-1]), nil
}

func (e *Executor) execZWrite(cmd Command) string {
	filter := strings.TrimSpace(cmd.Filter)

	if strings.HasPrefix(filter, "^") {
		return e.zwriteGlobal(filter)
	}

	names := e.store.GlobalNames()
	if len(names) == 0 {
		return "NO GLOBALS"
	}

	total := len(names)
	if filter != "" {
		lowered := strings.ToLower(filter)
		filtered := names[:0:0]
		for _, name := range names {
			if strings.Contains(strings.ToLower(name), lowered) {
				filtered = append(filtered, name)
			}
		}
		if len(filtered) == 0 {
			return fmt.Sprintf("NO GLOBALS MATCHING PATTERN: '%s'", filter)
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("GLOBALS MATCHING '%s':\n", filter))
		for i, name := range filtered {
			sb.WriteString(fmt.Sprintf("%3d. %s\n", i+1, name))
		}
		sb.WriteString(fmt.Sprintf("\nTotal: %d global(s) (filtered from %d)", len(filtered), total))
		return sb.String()
	}

	var sb strings.Builder
	sb.WriteString("GLOBALS LIST:\n")
	for i, name := range names {
		sb.WriteString(fmt.Sprintf("%3d. %s\n", i+1, name))
	}
	sb.WriteString(fmt.Sprintf("\nTotal: %d global(s)", total))
	return sb.String()
}

func (e *Executor) zwriteGlobal(ref string) string {
	name, path, err := parseGlobalRef(ref)
	if err != nil {
		return "ERROR: " + err.Error()
	}

	nodes, err := e.store.DumpGlobal(name, path)
	if err != nil {
		return "ERROR: " + err.Error()
	}
	if len(nodes) == 0 {
		return "NO NODES IN GLOBAL: " + core.NormalizeGlobalName(name)
	}

	normalized := core.NormalizeGlobalName(name)
	lines := make([]string, 0, len(nodes))
	for _, pv := range nodes {
		lines = append(lines, normalized+pv.Path.ZWrite()+"="+pv.Value.ZWrite())
	}
	return strings.Join(lines, "\n")
}

func (e *Executor) execFastSearch(cmd Command) string {
	if cmd.ValueText == "" {
		return "ERROR: Search value cannot be empty"
	}
	results := e.store.FastSearch(unquote(cmd.ValueText))
	return formatSearchResults(results)
}

func (e *Executor) execExactSearch(cmd Command) string {
	if cmd.ValueText == "" {
		return "ERROR: Search value cannot be empty"
	}
	results := e.store.ExactSearch(unquote(cmd.ValueText), cmd.Name)
	return formatSearchResults(results)
}

func formatSearchResults(results []core.SearchResult) string {
	if len(results) == 0 {
		return "NO RESULTS"
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, r.Global+r.Path.ZWrite()+"="+r.Value.ZWrite())
	}
	return strings.Join(lines, "\n")
}

func (e *Executor) execSimilaritySearch(cmd Command) string {
	if !e.embed.Enabled() {
		return "NO RESULTS"
	}

	topK := cmd.TopK
	if topK <= 0 {
		topK = e.opts.DefaultTopK
	}
	if topK > e.opts.MaxTopK {
		topK = e.opts.MaxTopK
	}

	global := cmd.Name
	if global != "" {
		global = core.NormalizeGlobalName(global)
	}

	hits, err := e.embed.SimilaritySearch(context.Background(), unquote(cmd.ValueText), topK, global)
	if err != nil {
		e.log.WithError(err).Warn("similarity search failed")
		return "NO RESULTS"
	}
	if len(hits) == 0 {
		return "NO RESULTS"
	}

	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		lines = append(lines, fmt.Sprintf("%s%s=%s (similarity: %.4f)",
			h.Global, h.Path.ZWrite(), h.Value.ZWrite(), h.Similarity))
	}
	return strings.Join(lines, "\n")
}

func (e *Executor) execBegin(sess *Session) string {
	if sess.InTransaction() {
		return "ERROR: Transaction already in progress"
	}
	sess.tx = e.store.Begin()
	return "TRANSACTION STARTED"
}

func (e *Executor) execCommit(sess *Session) string {
	if !sess.InTransaction() {
		return "ERROR: No transaction in progress"
	}
	tx := sess.tx
	e.store.Commit(tx)
	sess.tx = nil

	for _, op := range tx.Operations() {
		switch op.Kind {
		case core.TxOpSet:
			e.recordMutation("SET", op.Global, op.Path, op.Value)
		case core.TxOpKill:
			e.recordMutation("KILL", op.Global, op.Path, core.Null)
		}
	}
	return "TRANSACTION COMMITTED"
}

func (e *Executor) execRollback(sess *Session) string {
	if !sess.InTransaction() {
		return "ERROR: No transaction in progress"
	}
	sess.tx = nil
	return "TRANSACTION ROLLED BACK"
}

func (e *Executor) execStats() string {
	stats := e.store.Stats()
	if e.metrics != nil {
		e.metrics.NodeCount.Set(float64(stats.TotalNodes))
		e.metrics.CacheSize.Set(float64(stats.CacheSize))
	}

	var sb strings.Builder
	sb.WriteString("Database Statistics:\n")
	sb.WriteString(fmt.Sprintf("  globalCount: %d\n", stats.GlobalCount))
	sb.WriteString(fmt.Sprintf("  totalNodes: %d\n", stats.TotalNodes))
	sb.WriteString(fmt.Sprintf("  memoryUsage: %d\n", stats.MemoryUsage))
	sb.WriteString(fmt.Sprintf("  embeddingCount: %d\n", e.EmbeddingCount()))
	sb.WriteString(fmt.Sprintf("  autoEmbeddingEnabled: %t\n", e.embed.Enabled()))
	sb.WriteString(fmt.Sprintf("  cacheSize: %d\n", stats.CacheSize))
	sb.WriteString(fmt.Sprintf("  indexSize: %d", stats.IndexSize))
	return sb.String()
}

// recordMutation appends the operation to the AOF and forwards it to the
// replicator.
func (e *Executor) recordMutation(kind, global string, path core.Path, value core.Value) {
	if e.aof != nil {
		if kind == "SET" {
			e.aof("SET " + global + path.ZWrite() + "=" + value.ZWrite())
		} else {
			e.aof("KILL " + global + path.ZWrite())
		}
	}
	if e.repl != nil {
		e.repl.OnMutation(kind, global, path, value)
	}
}
