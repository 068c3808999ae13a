package grid

import (
	"errors"
	"fmt"
)

// Violation names the rule a cache enlistment broke.
type Violation int

const (
	NoViolation Violation = iota
	SystemCacheInUserTx
	UserCacheInSystemTx
	SystemTxMultipleCaches
	StoreLocalityMismatch
	WriteBehindMismatch
	DeploymentModeMismatch
)

var violationReasons = map[Violation]string{
	SystemCacheInUserTx:    "system cache can be enlisted only in system transaction",
	UserCacheInSystemTx:    "non-system cache can't be enlisted in system transaction",
	SystemTxMultipleCaches: "system transaction can include only one cache",
	StoreLocalityMismatch:  "caches with local and non-local stores can't be enlisted in one transaction",
	WriteBehindMismatch:    "caches with different write-behind setting can't be enlisted in one transaction",
	DeploymentModeMismatch: "caches with enabled and disabled deployment modes can't be enlisted in one transaction",
}

// String returns the reason of the violation, or "" for NoViolation.
func (v Violation) String() string {
	return violationReasons[v]
}

// Err converts v to a TxIncompatible error; NoViolation yields nil.
func (v Violation) Err() error {
	if v == NoViolation {
		return nil
	}
	return Error{Code: TxIncompatible, Err: errors.New(v.String()), UserData: v}
}

// CheckCompatibility evaluates the enlistment of candidate into a
// transaction (system or not) that already enlisted active. Rules are
// checked in precedence order and the first broken one is returned.
//
// It panics when the caches agree on store locality and write-behind but
// not on write-to-store-from-DHT: that flag is derived from the other two,
// so a mismatch means cache configuration validation is broken.
func CheckCompatibility(systemTx bool, active []*CacheContext, candidate *CacheContext) Violation {
	if candidate.System && !systemTx {
		return SystemCacheInUserTx
	}
	if !candidate.System && systemTx {
		return UserCacheInSystemTx
	}
	for _, a := range active {
		if candidate.System && a.ID != candidate.ID {
			return SystemTxMultipleCaches
		}
		if candidate.Store.Local != a.Store.Local {
			return StoreLocalityMismatch
		}
		if candidate.Store.WriteBehind != a.Store.WriteBehind {
			return WriteBehindMismatch
		}
		if candidate.DeploymentEnabled != a.DeploymentEnabled {
			return DeploymentModeMismatch
		}
		if candidate.Store.WriteToStoreFromDht != a.Store.WriteToStoreFromDht {
			panic(fmt.Sprintf("grid: write-to-store-from-dht mismatch between caches %q and %q with matching store locality and write-behind",
				candidate.Name, a.Name))
		}
	}
	return NoViolation
}

// VerifyTxCompatibility checks whether candidate may join tx, whose
// enlisted caches are activeCacheIDs. Ids with no live context are
// skipped: their cache stopped and the transaction fails on its own.
func (sc *SharedContext) VerifyTxCompatibility(tx Tx, activeCacheIDs []int32, candidate *CacheContext) Violation {
	active := make([]*CacheContext, 0, len(activeCacheIDs))
	for _, id := range activeCacheIDs {
		if c, ok := sc.CacheContext(id); ok {
			active = append(active, c)
		}
	}
	return CheckCompatibility(tx.System(), active, candidate)
}
