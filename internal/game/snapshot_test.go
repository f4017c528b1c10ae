package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"survivor-arena/internal/config"
)

func TestSnapshotPoolReadBeforePublish(t *testing.T) {
	pool := NewSnapshotPool(config.DefaultLimits())
	var dst GameSnapshot
	if pool.Read(&dst) {
		t.Fatal("Read should report false before the first publish")
	}
}

func TestSnapshotPoolDeepCopy(t *testing.T) {
	e := newTestEngine(t, noWeapons)
	addEnemy(e, EnemyNormal, V(100, 0), 10)

	pool := NewSnapshotPool(config.DefaultLimits())
	snap := pool.AcquireWrite()
	e.Snapshot(snap)
	pool.PublishWrite()

	var dst GameSnapshot
	if !pool.Read(&dst) {
		t.Fatal("Read after publish should succeed")
	}
	if dst.Sequence != 1 || len(dst.Enemies) != 1 || dst.State != "playing" {
		t.Fatalf("unexpected snapshot: seq=%d enemies=%d state=%s", dst.Sequence, len(dst.Enemies), dst.State)
	}

	// The next write lands in the other buffer and must not leak into dst.
	next := pool.AcquireWrite()
	e.Snapshot(next)
	next.Enemies = next.Enemies[:0]
	dst.Enemies[0].HP = -1

	var again GameSnapshot
	pool.Read(&again)
	if again.Enemies[0].HP != 10 {
		t.Errorf("published snapshot was mutated: hp %v", again.Enemies[0].HP)
	}
	if again.Sequence != 1 {
		t.Errorf("unpublished write is visible: seq %d", again.Sequence)
	}

	pool.PublishWrite()
	pool.Read(&again)
	if again.Sequence != 2 || len(again.Enemies) != 0 {
		t.Errorf("after publish: seq=%d enemies=%d", again.Sequence, len(again.Enemies))
	}
}

func TestEventTypeMarshalsByName(t *testing.T) {
	ev := NewEvent(EventTypeBossWarning, 7, "run-1", BossWarningPayload{Delay: 3})
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["type"] != "boss_warning" {
		t.Errorf("type = %v, want boss_warning", decoded["type"])
	}
}

func TestEventLogRequiresStart(t *testing.T) {
	el := NewEventLog()
	if el.Emit(NewEvent(EventTypeRunStarted, 0, "r", nil)) {
		t.Error("Emit should fail before Start")
	}
}

func TestEventLogWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if !el.Emit(NewEvent(EventTypeLevelUp, uint64(i), "run-a", LevelUpPayload{Level: i + 2})) {
			t.Fatalf("emit %d dropped", i)
		}
	}
	el.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var seqs []uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		if ev.RunID != "run-a" {
			t.Errorf("run id = %q", ev.RunID)
		}
		seqs = append(seqs, ev.Sequence)
	}
	if len(seqs) != 3 || seqs[0] != 1 || seqs[2] != 3 {
		t.Errorf("sequences = %v, want [1 2 3]", seqs)
	}
	if el.GetTotalCount() != 3 || el.GetDroppedCount() != 0 {
		t.Errorf("stats = %v", el.GetStats())
	}
}

func TestEventLogPerRunBudget(t *testing.T) {
	el := NewEventLog()
	if err := el.Start(""); err != nil {
		t.Fatal(err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < 50; i++ {
		if el.Emit(NewEvent(EventTypeShake, 0, "noisy", nil)) {
			accepted++
		}
	}
	if accepted >= 50 || el.GetDroppedCount() == 0 {
		t.Errorf("accepted %d of 50 burst events, want the per-run limiter to drop some", accepted)
	}
	if !el.Emit(NewEvent(EventTypeShake, 0, "quiet", nil)) {
		t.Error("another run should have its own budget")
	}
}
