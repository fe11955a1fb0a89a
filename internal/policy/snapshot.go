package policy

// TableSnapshot is the serializable form of the Q-table, persisted on
// shutdown so learning survives restarts.
type TableSnapshot struct {
	States map[string]StateSnapshot `json:"states"`
}

// StateSnapshot carries one state's action values. Only visited actions
// are recorded; absent entries restore as unvisited.
type StateSnapshot struct {
	Values map[int]float64 `json:"values"`
	Seq    uint64          `json:"seq"`
}

// Snapshot copies the current table into its serializable form.
func (p *QPolicy) Snapshot() TableSnapshot {
	snap := TableSnapshot{States: make(map[string]StateSnapshot, len(p.table))}
	for key, entry := range p.table {
		values := make(map[int]float64)
		for a := 0; a < NumActions; a++ {
			if entry.visited[a] {
				values[a] = entry.values[a]
			}
		}
		snap.States[key] = StateSnapshot{Values: values, Seq: entry.seq}
	}
	return snap
}

// Restore replaces the table contents from a snapshot. Entries beyond
// the configured cap are dropped oldest-first.
func (p *QPolicy) Restore(snap TableSnapshot) {
	p.table = make(map[string]*stateEntry, len(snap.States))
	for key, st := range snap.States {
		entry := &stateEntry{seq: st.Seq}
		for a, v := range st.Values {
			if a < 0 || a >= NumActions {
				continue
			}
			entry.values[a] = v
			entry.visited[a] = true
		}
		p.table[key] = entry
		if st.Seq > p.seq {
			p.seq = st.Seq
		}
	}
	for p.cfg.QTableMaxEntries > 0 && len(p.table) > p.cfg.QTableMaxEntries {
		p.evictOldest()
	}
}
