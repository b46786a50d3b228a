package sim

// Realm is the coarse cultivation tier. Ordered: scaling formulas use the
// integer value directly.
type Realm int

// Cultivation realms, lowest first.
const (
	RealmQiRefining Realm = iota
	RealmFoundation
	RealmGoldenCore
	RealmNascentSoul
	RealmSpiritSevering
	RealmAscension
)

var realmNames = [...]string{
	"Qi Refining",
	"Foundation Establishment",
	"Golden Core",
	"Nascent Soul",
	"Spirit Severing",
	"Ascension",
}

func (r Realm) String() string {
	if r < 0 || int(r) >= len(realmNames) {
		return "Unknown"
	}
	return realmNames[r]
}

// MaxRealmLevel is the level at which the next gain triggers a realm
// breakthrough instead of a plain level-up.
const MaxRealmLevel = 9

// NextLevelExp is the experience required to clear the given level within a
// realm. Higher realms scale linearly.
func NextLevelExp(r Realm, level int) int {
	if level < 1 {
		level = 1
	}
	return 100 * (int(r) + 1) * level
}

// GainExp applies experience to an avatar, handling level-ups and realm
// breakthroughs. Returns true when a breakthrough happened.
func (a *Avatar) GainExp(amount int) bool {
	if amount <= 0 {
		return false
	}
	a.Exp += amount
	broke := false
	for a.Exp >= NextLevelExp(a.Realm, a.Level) {
		a.Exp -= NextLevelExp(a.Realm, a.Level)
		if a.Level >= MaxRealmLevel {
			if a.Realm >= RealmAscension {
				a.Level = MaxRealmLevel
				a.Exp = 0
				break
			}
			a.Realm++
			a.Level = 1
			broke = true
		} else {
			a.Level++
		}
	}
	return broke
}
