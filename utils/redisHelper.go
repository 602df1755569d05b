package utils

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/dlclinic/clinic_backend/config"
)

var seqMutex sync.Mutex

func GetTypeName[T any]() string {
	var model T
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// NextSequence issues the next document number for T's table.
// Counters live in redis and are seeded from the table's row count on first
// use; issuance is guarded by a process mutex plus a redis lock so two
// instances never hand out the same number.
func NextSequence[T any](ctx context.Context) (int64, error) {
	key := strings.ToLower(GetTypeName[T]()) + "_seq"
	return nextSequence[T](ctx, key, "")
}

// NextYearlySequence issues per-year numbers (bill/file/expense formats embed
// the year). dateColumn names the column the document's year comes from, so a
// fresh counter seeds from the same rows the numbers were issued against
// (bills have bill_date, expenses expense_date, patients created_at).
func NextYearlySequence[T any](ctx context.Context, dateColumn string, year int) (int64, error) {
	key := fmt.Sprintf("%s_seq:%d", strings.ToLower(GetTypeName[T]()), year)
	return nextSequence[T](ctx, key, yearlySeedCondition(dateColumn, year))
}

func yearlySeedCondition(dateColumn string, year int) string {
	return fmt.Sprintf("YEAR(%s) = %d", dateColumn, year)
}

func nextSequence[T any](ctx context.Context, cacheKey string, seedCondition string) (int64, error) {
	seqMutex.Lock()
	defer seqMutex.Unlock()

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "lock:"+cacheKey, 10*time.Second, nil)
		if err == redislock.ErrNotObtained {
			return 0, fmt.Errorf("could not obtain sequence lock for %s", cacheKey)
		} else if err != nil {
			return 0, err
		}
		defer func() {
			_ = lock.Release(ctx)
		}()
	}

	seqNo, err := config.GetRedisCounter(ctx, cacheKey)
	if err != nil {
		return 0, err
	}
	// seqNo == 0 means redis is not configured; seqNo == 1 means the counter
	// is fresh. Either way, seed from the table's current row count.
	if seqNo <= 1 {
		count, err := seedCount[T](ctx, seedCondition)
		if err != nil {
			return 0, err
		}
		seqNo = count + 1
		if err := config.SetRedisObject(cacheKey, &seqNo, 0); err != nil {
			return 0, err
		}
	}
	return seqNo, nil
}

func seedCount[T any](ctx context.Context, condition string) (int64, error) {
	var model T
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	if condition != "" {
		dbCtx = dbCtx.Where(condition)
	}
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
