package game

import "math"

// damageEnemy applies damage with its feedback. It reports whether this
// call killed the enemy; an enemy already marked deleted is skipped, so a
// kill is only ever counted once.
func (e *Engine) damageEnemy(en *Enemy, amount float64, particles bool) bool {
	if en.Deleted || amount <= 0 {
		return false
	}
	killed := en.TakeDamage(amount)
	e.spawnText(newDamageNumber(en.Pos.Add(Vec2{0, -en.Height / 2}), amount, e.bal.Effects))
	if particles {
		e.spawnHitParticles(en.Pos, en.Color, e.bal.Effects.HitParticles)
	}
	if killed {
		e.onEnemyKilled(en)
	}
	return killed
}

func (e *Engine) onEnemyKilled(en *Enemy) {
	e.kills++

	// Orbs land inside the visible area so off-screen kills stay collectable.
	vp := e.camera.Viewport()
	pos := Vec2{
		X: Clamp(en.Pos.X, vp.MinX(), vp.MaxX()),
		Y: Clamp(en.Pos.Y, vp.MinY(), vp.MaxY()),
	}
	if !e.spawnOrb(newExpOrb(pos, en.ExpValue, e.bal.Pickups)) {
		// Pickup pool full: credit the experience directly.
		e.gainExp(en.ExpValue)
	}

	if en.IsBoss() {
		e.triggerShake(e.bal.Effects.BossDeathShake)
		for i := 0; i < e.bal.Effects.BossDeathBursts; i++ {
			at := en.Pos.Add(Vec2{
				X: RandRange(e.rng, -en.Width/2, en.Width/2),
				Y: RandRange(e.rng, -en.Height/2, en.Height/2),
			})
			e.spawnHitParticles(at, en.Color, e.bal.Effects.HitParticles)
		}
	}
}

// resolveProjectileHits tests every knife and bomb against every enemy.
// A projectile stops at its first hit. Auras deal their own damage.
func (e *Engine) resolveProjectileHits() {
	explodeOnHit := e.bal.Weapons[string(WeaponBomb)].ExplodeOnHit
	for _, p := range e.projectiles {
		if p.Deleted || p.Kind == ProjectileAura {
			continue
		}
		if p.Kind == ProjectileBomb && !explodeOnHit {
			continue
		}
		for _, en := range e.enemies {
			if en.Deleted {
				continue
			}
			if !CircleRect(p.Pos, p.Radius, en.Rect()) {
				continue
			}
			e.damageEnemy(en, p.Damage, true)
			p.Delete()
			if p.Damage > e.bal.Effects.BigHitThreshold {
				e.triggerShake(e.bal.Effects.BigHitShake)
			}
			if p.Kind == ProjectileBomb {
				e.detonate(p)
			}
			break
		}
	}
}

// detonatePending explodes bombs whose fuse ran out this tick.
func (e *Engine) detonatePending() {
	for i, p := range e.detonations {
		e.detonate(p)
		e.detonations[i] = nil
	}
	e.detonations = e.detonations[:0]
}

func (e *Engine) detonate(p *Projectile) {
	if p.Detonated {
		return
	}
	p.Detonated = true
	life := e.bal.Effects.ExplosionLifetime
	e.spawnExplosion(&Explosion{
		Body:   Body{Pos: p.Pos, Life: life, MaxLife: life},
		Radius: p.ExplosionRadius,
		Damage: p.Damage,
		Active: true,
	})
}

// resolveContacts applies enemy contact damage to the player. Only the first
// hit inside an invulnerability window lands.
func (e *Engine) resolveContacts() {
	pl := e.player
	for _, en := range e.enemies {
		if en.Deleted {
			continue
		}
		if !CircleRect(pl.Pos, pl.Radius, en.Rect()) {
			continue
		}
		if !pl.TakeContactDamage(en.Damage, e.elapsed) {
			continue
		}
		pl.ApplyKnockback(en.Pos, en.KnockbackForce, en.KnockbackDuration)
		if en.IsBoss() {
			e.triggerShake(e.bal.Effects.BossContactShake)
		} else {
			e.triggerShake(e.bal.Effects.ContactShake)
		}
	}
}

// separationForce pushes enemy i away from non-boss neighbours within radius.
// Neighbours closer than the radius push harder, linearly.
func (e *Engine) separationForce(i int, en *Enemy, radius float64) Vec2 {
	var push Vec2
	for _, j := range e.hash.QueryRadius(en.Pos.X, en.Pos.Y, radius) {
		if int(j) == i {
			continue
		}
		other := e.enemies[j]
		dx := en.Pos.X - other.Pos.X
		if dx > radius || dx < -radius {
			continue
		}
		dy := en.Pos.Y - other.Pos.Y
		if dy > radius || dy < -radius {
			continue
		}
		d := math.Sqrt(dx*dx + dy*dy)
		if d == 0 || d >= radius {
			continue
		}
		w := (radius - d) / radius
		push.X += dx / d * w
		push.Y += dy / d * w
	}
	return push
}
