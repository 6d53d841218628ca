package cache

type Kind int

const (
	KindNonStorable Kind = iota
	KindStorableNonCacheable
	KindStorableCacheable
)

func (k Kind) String() string {
	switch k {
	case KindNonStorable:
		return "NonStorable"
	case KindStorableNonCacheable:
		return "StorableNonCacheable"
	case KindStorableCacheable:
		return "StorableCacheable"
	}
	return "Unknown"
}

// Decision is one of NonStorable, StorableNonCacheable or StorableCacheable.
type Decision interface {
	Kind() Kind
	decision()
}

type NonStorable struct {
	Evidence string
}

type StorableNonCacheable struct {
	Evidence string
}

type StorableCacheable struct {
	Evidence string
	Note     string
}

func (NonStorable) Kind() Kind          { return KindNonStorable }
func (StorableNonCacheable) Kind() Kind { return KindStorableNonCacheable }
func (StorableCacheable) Kind() Kind    { return KindStorableCacheable }

func (NonStorable) decision()          {}
func (StorableNonCacheable) decision() {}
func (StorableCacheable) decision()    {}

// EvidenceOf returns the evidence string carried by any decision.
func EvidenceOf(d Decision) string {
	switch v := d.(type) {
	case NonStorable:
		return v.Evidence
	case StorableNonCacheable:
		return v.Evidence
	case StorableCacheable:
		return v.Evidence
	}
	return ""
}
