package game

import (
	"errors"
	"fmt"
	"log"
)

var (
	// ErrNotLevelingUp is returned when an upgrade is chosen outside a level-up.
	ErrNotLevelingUp = errors.New("run is not waiting for an upgrade")
	// ErrUnknownUpgrade is returned for an option that was not offered.
	ErrUnknownUpgrade = errors.New("unknown upgrade option")
)

// UpgradeKind separates weapon upgrades from passive ones.
type UpgradeKind string

const (
	UpgradeWeapon  UpgradeKind = "weapon"
	UpgradePassive UpgradeKind = "passive"
)

// UpgradeHeal is the passive that restores full health.
const UpgradeHeal = "heal"

// UpgradeOption is one choice on the level-up screen.
type UpgradeOption struct {
	ID          string      `json:"id"`
	Kind        UpgradeKind `json:"kind"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
	IsNew       bool        `json:"isNew"`
	Level       int         `json:"level"` // Level the weapon reaches when chosen
}

// gainExp credits experience and queues any level-ups it causes.
func (e *Engine) gainExp(amount float64) {
	levels := e.player.GainExp(amount)
	if levels == 0 {
		return
	}
	e.pendingLevelUps += levels
	if e.state == StatePlaying {
		e.enterLevelUp()
	}
}

func (e *Engine) enterLevelUp() {
	e.state = StateLevelUp
	e.options = e.buildUpgradeOptions()
	e.emit(EventTypeLevelUp, LevelUpPayload{
		Level:        e.player.Level,
		NextLevelExp: e.player.NextLevelExp,
		Pending:      e.pendingLevelUps,
		Options:      e.options,
	})
}

func (e *Engine) buildUpgradeOptions() []UpgradeOption {
	opts := make([]UpgradeOption, 0, len(WeaponKinds)+1)
	for _, kind := range WeaponKinds {
		stats, ok := e.bal.Weapons[string(kind)]
		if !ok {
			continue
		}
		opt := UpgradeOption{
			ID:          string(kind),
			Kind:        UpgradeWeapon,
			Name:        stats.Name,
			Description: stats.Description,
			Icon:        stats.Icon,
			Level:       1,
		}
		if w := e.player.Weapon(kind); w != nil {
			opt.Level = w.Level + 1
		} else {
			opt.IsNew = true
		}
		opts = append(opts, opt)
	}
	return append(opts, UpgradeOption{
		ID:          UpgradeHeal,
		Kind:        UpgradePassive,
		Name:        "Heal",
		Description: "Restore full health.",
		Icon:        "❤️",
	})
}

// SelectUpgrade applies one of the offered options. The run resumes once no
// level-ups are pending; otherwise a fresh option set is offered.
// An empty kind matches any option with the given id.
func (e *Engine) SelectUpgrade(id string, kind UpgradeKind) error {
	if e.state != StateLevelUp {
		return ErrNotLevelingUp
	}
	var chosen *UpgradeOption
	for i := range e.options {
		if e.options[i].ID == id && (kind == "" || e.options[i].Kind == kind) {
			chosen = &e.options[i]
			break
		}
	}
	if chosen == nil {
		return fmt.Errorf("%w: %s/%s", ErrUnknownUpgrade, kind, id)
	}

	level := 0
	switch chosen.Kind {
	case UpgradeWeapon:
		wk := WeaponKind(chosen.ID)
		if w := e.player.Weapon(wk); w != nil {
			w.LevelUp()
			level = w.Level
		} else if w := e.newWeapon(wk); w != nil {
			e.player.AddWeapon(w)
			level = w.Level
		}
	case UpgradePassive:
		if chosen.ID == UpgradeHeal {
			e.player.Heal(e.player.MaxHP)
		}
	}
	e.emit(EventTypeUpgradeApplied, UpgradeAppliedPayload{ID: chosen.ID, Kind: chosen.Kind, Level: level})

	e.pendingLevelUps--
	if e.pendingLevelUps > 0 {
		e.enterLevelUp()
		return nil
	}
	e.pendingLevelUps = 0
	e.options = nil
	e.state = StatePlaying
	return nil
}

// newWeapon builds a level-1 weapon of kind using the run's balance and policy.
func (e *Engine) newWeapon(kind WeaponKind) *Weapon {
	stats, ok := e.bal.Weapons[string(kind)]
	if !ok {
		log.Printf("⚠️ No balance stats for weapon %s", kind)
		return nil
	}
	w, ok := NewWeapon(kind, stats, e.policy[string(kind)])
	if !ok {
		log.Printf("⚠️ Unknown weapon kind %s", kind)
		return nil
	}
	return w
}
