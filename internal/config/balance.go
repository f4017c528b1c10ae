package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Weapon kind identifiers shared by the balance tables and the simulation.
const (
	WeaponKnife  = "knife"
	WeaponGarlic = "garlic"
	WeaponBomb   = "bomb"
)

// Balance is every gameplay tuning value of a run.
// Distances are logical units, speeds are units per second, times are seconds.
type Balance struct {
	Player        PlayerBalance                     `yaml:"player"`
	Enemies       EnemyTable                        `yaml:"enemies"`
	Separation    SeparationBalance                 `yaml:"separation"`
	Weapons       map[string]WeaponStats            `yaml:"weapons"`
	LevelPolicies map[string]map[string]LevelPolicy `yaml:"levelPolicies"`
	Spawn         SpawnBalance                      `yaml:"spawn"`
	Boss          BossBalance                       `yaml:"boss"`
	Pickups       PickupBalance                     `yaml:"pickups"`
	Effects       EffectsBalance                    `yaml:"effects"`
}

// PlayerBalance holds the player's starting stats.
type PlayerBalance struct {
	Radius                float64  `yaml:"radius"`
	Speed                 float64  `yaml:"speed"`
	MaxHP                 float64  `yaml:"maxHp"`
	InitialNextLevelExp   float64  `yaml:"initialNextLevelExp"`
	ExpScalingFactor      float64  `yaml:"expScalingFactor"`
	InvulnerabilityWindow float64  `yaml:"invulnerabilityWindow"`
	StartingWeapons       []string `yaml:"startingWeapons"`
	Color                 string   `yaml:"color"`
}

// EnemyStats is one row of the enemy tier table.
type EnemyStats struct {
	Width             float64 `yaml:"width"`
	Height            float64 `yaml:"height"`
	Speed             float64 `yaml:"speed"`
	HP                float64 `yaml:"hp"`
	Damage            float64 `yaml:"damage"`
	ExpValue          float64 `yaml:"expValue"`
	KnockbackForce    float64 `yaml:"knockbackForce"`
	KnockbackDuration float64 `yaml:"knockbackDuration"`
	Color             string  `yaml:"color"`
}

// EnemyTable is the per-tier stat table.
type EnemyTable struct {
	Normal EnemyStats `yaml:"normal"`
	Fast   EnemyStats `yaml:"fast"`
	Tank   EnemyStats `yaml:"tank"`
	Boss   EnemyStats `yaml:"boss"`
}

// SeparationBalance tunes local flocking between non-boss enemies.
type SeparationBalance struct {
	Radius   float64 `yaml:"radius"`
	Strength float64 `yaml:"strength"`
}

// WeaponStats are the level-1 stats of a weapon kind. Fields a kind does not
// use stay zero.
type WeaponStats struct {
	Name            string  `yaml:"name"`
	Icon            string  `yaml:"icon"`
	Description     string  `yaml:"description"`
	Color           string  `yaml:"color"`
	Damage          float64 `yaml:"damage"`
	Cooldown        float64 `yaml:"cooldown"`
	MinCooldown     float64 `yaml:"minCooldown"`
	Speed           float64 `yaml:"speed"`
	Lifetime        float64 `yaml:"lifetime"`
	Radius          float64 `yaml:"radius"`
	Count           int     `yaml:"count"`
	Spread          float64 `yaml:"spread"`
	Jitter          float64 `yaml:"jitter"`
	TargetRange     float64 `yaml:"targetRange"` // 0 = unbounded
	TickInterval    float64 `yaml:"tickInterval"`
	FuseTime        float64 `yaml:"fuseTime"`
	ExplosionRadius float64 `yaml:"explosionRadius"`
	ThrowDistance   float64 `yaml:"throwDistance"`
	TimeToTarget    float64 `yaml:"timeToTarget"`
	ArcHeight       float64 `yaml:"arcHeight"`
	ExplodeOnHit    bool    `yaml:"explodeOnHit"`
}

// LevelPolicy describes how one weapon kind changes on each level-up.
// Multipliers of 0 are treated as 1.
type LevelPolicy struct {
	DamageMultiplier   float64 `yaml:"damageMultiplier"`
	DamageAdd          float64 `yaml:"damageAdd"`
	MinDamage          float64 `yaml:"minDamage"`
	CooldownMultiplier float64 `yaml:"cooldownMultiplier"`
	CountEvery         int     `yaml:"countEvery"` // +1 projectile every N levels, 0 = never
	RadiusMultiplier   float64 `yaml:"radiusMultiplier"`
}

// SpawnBalance tunes the normal-enemy spawner and difficulty curve.
type SpawnBalance struct {
	BaseInterval           float64 `yaml:"baseInterval"`
	MinInterval            float64 `yaml:"minInterval"`
	IntervalDecayPerSecond float64 `yaml:"intervalDecayPerSecond"`
	EdgePadding            float64 `yaml:"edgePadding"`
	FastUnlockTime         float64 `yaml:"fastUnlockTime"`
	FastChance             float64 `yaml:"fastChance"`
	TankUnlockTime         float64 `yaml:"tankUnlockTime"`
	TankChance             float64 `yaml:"tankChance"`
	DifficultyPerMinute    float64 `yaml:"difficultyPerMinute"`
	PauseDuringBoss        bool    `yaml:"pauseDuringBoss"`
}

// BossBalance tunes the boss cadence and warning.
type BossBalance struct {
	Interval     float64 `yaml:"interval"`
	WarningDelay float64 `yaml:"warningDelay"`
	WarningShake Shake   `yaml:"warningShake"`
}

// PickupBalance tunes experience orbs.
type PickupBalance struct {
	OrbLifetime         float64 `yaml:"orbLifetime"`
	CollectRadius       float64 `yaml:"collectRadius"`
	AttractRadius       float64 `yaml:"attractRadius"`
	AttractSpeed        float64 `yaml:"attractSpeed"`
	AttractAcceleration float64 `yaml:"attractAcceleration"`
	MaxAttractSpeed     float64 `yaml:"maxAttractSpeed"`
}

// Shake is a screen-shake request.
type Shake struct {
	Intensity float64 `yaml:"intensity"`
	Duration  float64 `yaml:"duration"`
}

// EffectsBalance tunes feedback effects.
type EffectsBalance struct {
	BigHitThreshold   float64 `yaml:"bigHitThreshold"`
	BigHitShake       Shake   `yaml:"bigHitShake"`
	ContactShake      Shake   `yaml:"contactShake"`
	BossContactShake  Shake   `yaml:"bossContactShake"`
	BossDeathShake    Shake   `yaml:"bossDeathShake"`
	ExplosionShake    Shake   `yaml:"explosionShake"`
	ExplosionLifetime float64 `yaml:"explosionLifetime"`
	HitParticles      int     `yaml:"hitParticles"`
	BossDeathBursts   int     `yaml:"bossDeathBursts"`
	ParticleMinLife   float64 `yaml:"particleMinLife"`
	ParticleMaxLife   float64 `yaml:"particleMaxLife"`
	ParticleMinSpeed  float64 `yaml:"particleMinSpeed"`
	ParticleMaxSpeed  float64 `yaml:"particleMaxSpeed"`
	DamageNumberLife  float64 `yaml:"damageNumberLife"`
	DamageNumberRise  float64 `yaml:"damageNumberRise"`
	WeatherInterval   float64 `yaml:"weatherInterval"`
}

// DefaultBalance returns the shipped tuning.
func DefaultBalance() Balance {
	return Balance{
		Player: PlayerBalance{
			Radius:                15,
			Speed:                 180,
			MaxHP:                 100,
			InitialNextLevelExp:   100,
			ExpScalingFactor:      1.5,
			InvulnerabilityWindow: 0.5,
			StartingWeapons:       []string{WeaponKnife, WeaponBomb},
			Color:                 "#4facfe",
		},
		Enemies: EnemyTable{
			Normal: EnemyStats{Width: 20, Height: 20, Speed: 90, HP: 10, Damage: 10, ExpValue: 10,
				KnockbackForce: 300, KnockbackDuration: 0.15, Color: "#ff4757"},
			Fast: EnemyStats{Width: 15, Height: 15, Speed: 150, HP: 5, Damage: 10, ExpValue: 10,
				KnockbackForce: 250, KnockbackDuration: 0.15, Color: "#ffd700"},
			Tank: EnemyStats{Width: 30, Height: 30, Speed: 60, HP: 30, Damage: 10, ExpValue: 30,
				KnockbackForce: 400, KnockbackDuration: 0.2, Color: "#2ed573"},
			Boss: EnemyStats{Width: 80, Height: 80, Speed: 120, HP: 500, Damage: 25, ExpValue: 1000,
				KnockbackForce: 650, KnockbackDuration: 0.35, Color: "#8e44ad"},
		},
		Separation: SeparationBalance{Radius: 24, Strength: 60},
		Weapons: map[string]WeaponStats{
			WeaponKnife: {
				Name: "Throwing Knife", Icon: "🔪", Color: "#ff00ff",
				Description: "Throws a knife at nearby enemies.",
				Damage:      10, Cooldown: 0.3, MinCooldown: 0.08,
				Speed: 600, Lifetime: 1.0, Radius: 5, Count: 1,
				Spread: 0.2, Jitter: 0.05,
			},
			WeaponGarlic: {
				Name: "Garlic Aura", Icon: "🧄", Color: "#ff6464",
				Description: "Damages enemies in an area around you.",
				Damage:      3, Cooldown: 0.1, MinCooldown: 0.1,
				Radius: 60, TickInterval: 0.2,
			},
			WeaponBomb: {
				Name: "Cherry Bomb", Icon: "💣", Color: "#333333",
				Description: "Throws bombs that explode in a large area.",
				Damage:      20, Cooldown: 5, MinCooldown: 1,
				Radius: 8, FuseTime: 2, ExplosionRadius: 100,
				TargetRange: 400, ThrowDistance: 200, TimeToTarget: 1, ArcHeight: 50,
				ExplodeOnHit: true,
			},
		},
		LevelPolicies: map[string]map[string]LevelPolicy{
			"classic": {
				WeaponKnife:  {DamageMultiplier: 1.2, CooldownMultiplier: 0.9, CountEvery: 2},
				WeaponGarlic: {DamageMultiplier: 1.2, DamageAdd: 1, RadiusMultiplier: 1.2},
				WeaponBomb:   {DamageMultiplier: 1.2},
			},
			"swarm": {
				WeaponKnife:  {DamageMultiplier: 0.85, MinDamage: 3, CountEvery: 1},
				WeaponGarlic: {DamageMultiplier: 0.9, MinDamage: 1, RadiusMultiplier: 1.3},
				WeaponBomb:   {DamageMultiplier: 0.9, MinDamage: 5, CooldownMultiplier: 0.85, RadiusMultiplier: 1.15},
			},
		},
		Spawn: SpawnBalance{
			BaseInterval:           1.0,
			MinInterval:            0.2,
			IntervalDecayPerSecond: 0.005,
			EdgePadding:            50,
			FastUnlockTime:         30,
			FastChance:             0.2,
			TankUnlockTime:         60,
			TankChance:             0.1,
			DifficultyPerMinute:    0.2,
			PauseDuringBoss:        true,
		},
		Boss: BossBalance{
			Interval:     60,
			WarningDelay: 3,
			WarningShake: Shake{Intensity: 5, Duration: 3},
		},
		Pickups: PickupBalance{
			OrbLifetime:         30,
			CollectRadius:       30,
			AttractRadius:       150,
			AttractSpeed:        480,
			AttractAcceleration: 1800,
			MaxAttractSpeed:     1200,
		},
		Effects: EffectsBalance{
			BigHitThreshold:   20,
			BigHitShake:       Shake{Intensity: 2, Duration: 0.1},
			ContactShake:      Shake{Intensity: 2, Duration: 0.2},
			BossContactShake:  Shake{Intensity: 6, Duration: 0.3},
			BossDeathShake:    Shake{Intensity: 10, Duration: 0.5},
			ExplosionShake:    Shake{Intensity: 5, Duration: 0.2},
			ExplosionLifetime: 0.5,
			HitParticles:      5,
			BossDeathBursts:   20,
			ParticleMinLife:   0.2,
			ParticleMaxLife:   0.4,
			ParticleMinSpeed:  60,
			ParticleMaxSpeed:  180,
			DamageNumberLife:  0.8,
			DamageNumberRise:  60,
			WeatherInterval:   30,
		},
	}
}

// LoadBalance reads a YAML balance file on top of DefaultBalance, so a file
// only needs to name the sections it changes. Entries of the weapons and
// levelPolicies maps are replaced whole, not merged field by field.
func LoadBalance(filePath string) (*Balance, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance file: %w", err)
	}
	return ParseBalance(data)
}

// ParseBalance decodes YAML balance data on top of DefaultBalance.
func ParseBalance(data []byte) (*Balance, error) {
	b := DefaultBalance()
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse balance YAML: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid balance config: %w", err)
	}
	return &b, nil
}

// Validate checks the tables for values the simulation cannot run with.
func (b *Balance) Validate() error {
	if b.Player.Radius <= 0 || b.Player.Speed < 0 || b.Player.MaxHP <= 0 {
		return fmt.Errorf("player radius, speed and maxHp must be positive")
	}
	if b.Player.InitialNextLevelExp <= 0 {
		return fmt.Errorf("player initialNextLevelExp must be positive")
	}
	if b.Player.ExpScalingFactor < 1 {
		return fmt.Errorf("player expScalingFactor must be >= 1, got %v", b.Player.ExpScalingFactor)
	}
	if b.Player.InvulnerabilityWindow < 0 {
		return fmt.Errorf("player invulnerabilityWindow cannot be negative")
	}
	for _, id := range b.Player.StartingWeapons {
		if _, ok := b.Weapons[id]; !ok {
			return fmt.Errorf("starting weapon %q has no stats", id)
		}
	}

	tiers := map[string]EnemyStats{
		"normal": b.Enemies.Normal,
		"fast":   b.Enemies.Fast,
		"tank":   b.Enemies.Tank,
		"boss":   b.Enemies.Boss,
	}
	for name, t := range tiers {
		if t.Width <= 0 || t.Height <= 0 || t.HP <= 0 {
			return fmt.Errorf("enemy tier %s needs positive width, height and hp", name)
		}
		if t.Speed < 0 || t.Damage < 0 || t.ExpValue < 0 {
			return fmt.Errorf("enemy tier %s has negative stats", name)
		}
	}

	for _, id := range weaponIDs {
		w, ok := b.Weapons[id]
		if !ok {
			return fmt.Errorf("missing weapon stats for %s", id)
		}
		if w.Cooldown <= 0 {
			return fmt.Errorf("weapon %s cooldown must be positive", id)
		}
		if w.Damage < 0 {
			return fmt.Errorf("weapon %s damage cannot be negative", id)
		}
	}
	if b.Weapons[WeaponGarlic].TickInterval <= 0 {
		return fmt.Errorf("garlic tickInterval must be positive")
	}
	if bomb := b.Weapons[WeaponBomb]; bomb.FuseTime <= 0 || bomb.TimeToTarget <= 0 {
		return fmt.Errorf("bomb fuseTime and timeToTarget must be positive")
	}

	if len(b.LevelPolicies) == 0 {
		return fmt.Errorf("levelPolicies cannot be empty")
	}
	for name, table := range b.LevelPolicies {
		for kind, p := range table {
			if _, ok := b.Weapons[kind]; !ok {
				return fmt.Errorf("level policy %s names unknown weapon %s", name, kind)
			}
			if p.DamageMultiplier < 0 || p.CooldownMultiplier < 0 || p.RadiusMultiplier < 0 {
				return fmt.Errorf("level policy %s/%s has negative multipliers", name, kind)
			}
			if p.CountEvery < 0 {
				return fmt.Errorf("level policy %s/%s countEvery cannot be negative", name, kind)
			}
		}
		for _, id := range weaponIDs {
			if _, ok := table[id]; !ok {
				return fmt.Errorf("level policy %s has no entry for weapon %s", name, id)
			}
		}
	}

	if b.Spawn.BaseInterval <= 0 || b.Spawn.MinInterval <= 0 {
		return fmt.Errorf("spawn intervals must be positive")
	}
	if b.Spawn.MinInterval > b.Spawn.BaseInterval {
		return fmt.Errorf("spawn minInterval %v exceeds baseInterval %v", b.Spawn.MinInterval, b.Spawn.BaseInterval)
	}
	for _, c := range []float64{b.Spawn.FastChance, b.Spawn.TankChance} {
		if c < 0 || c > 1 {
			return fmt.Errorf("spawn chances must be within [0,1], got %v", c)
		}
	}
	if b.Boss.Interval <= 0 || b.Boss.WarningDelay < 0 {
		return fmt.Errorf("boss interval must be positive and warningDelay non-negative")
	}
	if b.Pickups.CollectRadius <= 0 || b.Pickups.OrbLifetime <= 0 {
		return fmt.Errorf("pickup collectRadius and orbLifetime must be positive")
	}
	if b.Effects.ExplosionLifetime <= 0 {
		return fmt.Errorf("effects explosionLifetime must be positive")
	}

	return nil
}

// weaponIDs lists every weapon the simulation knows how to run.
var weaponIDs = []string{WeaponKnife, WeaponGarlic, WeaponBomb}

// Policy returns the named level-up policy table.
func (b *Balance) Policy(name string) (map[string]LevelPolicy, error) {
	table, ok := b.LevelPolicies[name]
	if !ok {
		return nil, fmt.Errorf("unknown level policy %q", name)
	}
	return table, nil
}
