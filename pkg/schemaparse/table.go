package schemaparse

import (
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
	"github.com/flowschema/evalengine/pkg/tableexec"
)

// parseTable compiles a $table declaration into a tableexec.TableDef. A
// $table carries the reserved child keys
// $datas (pre-row column expressions), $rows (row plans), $skip, and
// $clear. It returns the table's index fields (if any) and the aggregate
// dependency set of every compiled expression inside the table; Parse
// discards that set and schedules the table from tableDeps instead.
func (p *parser) parseTable(table map[string]any) (tableexec.TableDef, []string, *logic.DependencySet, error) {
	var def tableexec.TableDef
	allDeps := logic.NewDependencySet()

	dataCols, dataDeps, err := p.parseColumnList(table["$datas"])
	if err != nil {
		return def, nil, nil, err
	}
	def.DataPlans = dataCols
	mergeAllDeps(allDeps, dataDeps...)

	if expr, ok := table["$skip"]; ok {
		id, deps, err := p.compile(expr)
		if err != nil {
			return def, nil, nil, err
		}
		def.HasSkipLogic = true
		def.SkipLogic = id
		mergeAllDeps(allDeps, deps)
	}

	if expr, ok := table["$clear"]; ok {
		id, deps, err := p.compile(expr)
		if err != nil {
			return def, nil, nil, err
		}
		def.HasClearLogic = true
		def.ClearLogic = id
		mergeAllDeps(allDeps, deps)
	}

	var indexFields []string
	if idx, ok := table["index"].([]any); ok {
		for _, f := range idx {
			if s, ok := f.(string); ok {
				indexFields = append(indexFields, s)
			}
		}
	}

	rows, _ := table["$rows"].([]any)
	for _, raw := range rows {
		rowMap, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		plan, deps, err := p.parseRow(rowMap)
		if err != nil {
			return def, nil, nil, err
		}
		def.RowPlans = append(def.RowPlans, plan)
		mergeAllDeps(allDeps, deps...)
	}

	return def, indexFields, allDeps, nil
}

// parseRow compiles one entry of a table's "$rows" array into a RowPlan. A
// row is a repeat block when it names "start"/"end" bounds (with an
// optional "kind":"repeat" for clarity); otherwise it is a fixed row.
func (p *parser) parseRow(rowMap map[string]any) (tableexec.RowPlan, []*logic.DependencySet, error) {
	kind, _ := rowMap["kind"].(string)
	_, hasStart := rowMap["start"]
	_, hasEnd := rowMap["end"]

	if kind == "repeat" || hasStart || hasEnd {
		startID, startDeps, err := p.compile(rowMap["start"])
		if err != nil {
			return tableexec.RowPlan{}, nil, err
		}
		endID, endDeps, err := p.compile(rowMap["end"])
		if err != nil {
			return tableexec.RowPlan{}, nil, err
		}
		cols, colDeps, err := p.parseColumnList(rowMap["columns"])
		if err != nil {
			return tableexec.RowPlan{}, nil, err
		}
		normal, forward := partitionColumns(cols, colDeps)
		plan := tableexec.RowPlan{
			Kind:        tableexec.RowRepeat,
			StartExpr:   startID,
			EndExpr:     endID,
			NormalCols:  normal,
			ForwardCols: forward,
		}
		deps := append([]*logic.DependencySet{startDeps, endDeps}, colDeps...)
		return plan, deps, nil
	}

	cols, colDeps, err := p.parseColumnList(rowMap["columns"])
	if err != nil {
		return tableexec.RowPlan{}, nil, err
	}
	plan := tableexec.RowPlan{Kind: tableexec.RowStatic, Columns: cols}
	return plan, colDeps, nil
}

// parseColumnList compiles an ordered "columns" (or "$datas") array of
// {"name": ..., "expr": ...} entries, preserving declaration order so
// forward-reference partitioning can reason about it.
func (p *parser) parseColumnList(raw any) ([]tableexec.ColumnPlan, []*logic.DependencySet, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, nil, nil
	}
	cols := make([]tableexec.ColumnPlan, 0, len(arr))
	deps := make([]*logic.DependencySet, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		id, d, err := p.compile(m["expr"])
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, tableexec.ColumnPlan{Name: name, Expr: id})
		deps = append(deps, d)
	}
	return cols, deps, nil
}

// partitionColumns implements the forward-reference partition: a column
// is forward-referencing if it directly or transitively
// depends on a column declared later in the same row.
func partitionColumns(cols []tableexec.ColumnPlan, deps []*logic.DependencySet) (normal, forward []tableexec.ColumnPlan) {
	n := len(cols)
	indexOf := make(map[string]int, n)
	for i, c := range cols {
		indexOf[colVarKey(c.Name)] = i
	}

	adj := make([][]int, n)
	for i, d := range deps {
		if d == nil {
			continue
		}
		for _, path := range d.Paths() {
			if path.IsRoot() {
				continue
			}
			if j, ok := indexOf[path.Head()]; ok && j != i {
				adj[i] = append(adj[i], j)
			}
		}
	}

	isForward := make([]bool, n)
	visited := make([]bool, n)
	var visit func(i int) bool
	visit = func(i int) bool {
		if visited[i] {
			return isForward[i]
		}
		visited[i] = true
		result := false
		for _, j := range adj[i] {
			if j > i {
				result = true
			}
			if visit(j) {
				result = true
			}
		}
		isForward[i] = result
		return result
	}
	for i := range cols {
		visit(i)
	}

	for i, c := range cols {
		if isForward[i] {
			forward = append(forward, c)
		} else {
			normal = append(normal, c)
		}
	}
	return normal, forward
}

// tableDeps aggregates the dependency paths of every expression compiled
// into def, for use as the table's own node in the scheduling graph.
func (p *parser) tableDeps(def tableexec.TableDef) []evalpath.Path {
	set := logic.NewDependencySet()
	add := func(id logic.ID) {
		if d := p.compiler.Dependencies(id); d != nil {
			for _, path := range d.Paths() {
				set.Add(path)
			}
		}
	}
	for _, c := range def.DataPlans {
		add(c.Expr)
	}
	if def.HasSkipLogic {
		add(def.SkipLogic)
	}
	if def.HasClearLogic {
		add(def.ClearLogic)
	}
	for _, row := range def.RowPlans {
		for _, c := range row.Columns {
			add(c.Expr)
		}
		if row.Kind == tableexec.RowRepeat {
			add(row.StartExpr)
			add(row.EndExpr)
		}
		for _, c := range row.NormalCols {
			add(c.Expr)
		}
		for _, c := range row.ForwardCols {
			add(c.Expr)
		}
	}
	return set.Paths()
}

// colVarKey mirrors tableexec's own sibling-column variable-addressing
// convention, so the dependency analysis above matches what a compiled
// {"var": "$name"} reference inside the row will actually resolve to.
func colVarKey(name string) string { return "$" + name }

func mergeAllDeps(into *logic.DependencySet, sets ...*logic.DependencySet) {
	for _, d := range sets {
		if d == nil {
			continue
		}
		for _, p := range d.Paths() {
			into.Add(p)
		}
	}
}
