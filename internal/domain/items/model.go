package items

import "time"

type Kind string

const (
	KindStock Kind = "stock" // single bucket: current
	KindLinen Kind = "linen" // clean / soiled / in_laundry / damaged
)

type Status string

const (
	StatusOut      Status = "out"
	StatusCritical Status = "critical"
	StatusLow      Status = "low"
	StatusWarning  Status = "warning"
	StatusOK       Status = "ok"
)

// Buckets holds every possible bucket; the item's Kind decides which of
// them are meaningful. Only the ledger engine mutates them.
type Buckets struct {
	Current   float64
	Clean     float64
	Soiled    float64
	InLaundry float64
	Damaged   float64
}

func (b Buckets) Total(kind Kind) float64 {
	if kind == KindLinen {
		return b.Clean + b.Soiled + b.InLaundry + b.Damaged
	}
	return b.Current
}

func (b Buckets) Map(kind Kind) map[string]float64 {
	if kind == KindLinen {
		return map[string]float64{
			"clean":      b.Clean,
			"soiled":     b.Soiled,
			"in_laundry": b.InLaundry,
			"damaged":    b.Damaged,
		}
	}
	return map[string]float64{"current": b.Current}
}

// Thresholds are advisory levels used only for classification.
// Min/Reorder/Max apply to stock items, Par to linen.
type Thresholds struct {
	MinLevel     float64
	ReorderLevel float64
	MaxLevel     float64
	ParLevel     float64
}

type Item struct {
	ID         int64
	OrgID      int64
	Code       string
	Name       string
	Kind       Kind
	Buckets    Buckets
	Total      float64
	Thresholds Thresholds
	Active     bool
	CreatedAt  time.Time
}

// Status classifies the item against its thresholds; checks run in order,
// first match wins.
func (it *Item) Status() Status {
	if it.Kind == KindLinen {
		clean := it.Buckets.Clean
		par := it.Thresholds.ParLevel
		switch {
		case clean == 0:
			return StatusOut
		case clean < par*0.3:
			return StatusCritical
		case clean < par*0.5:
			return StatusLow
		}
		return StatusOK
	}

	cur := it.Buckets.Current
	switch {
	case cur <= 0:
		return StatusOut
	case cur <= it.Thresholds.ReorderLevel:
		return StatusLow
	case cur <= it.Thresholds.MinLevel:
		return StatusWarning
	}
	return StatusOK
}
