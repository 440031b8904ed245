package rbind

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessorCacheBuildsOnceUnderRace(t *testing.T) {
	var c accessorCache
	var builds atomic.Int32
	key := cacheKey{rt: reflect.TypeOf(0), shape: 42}

	var wg sync.WaitGroup
	results := make([]any, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.getOrBuild(key, func() (any, error) {
				builds.Add(1)
				return "built", nil
			})
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "built", r)
	}
	// The re-check under the cache's mutex lets only the first caller run
	// build(); every other caller observes the value it stored.
	assert.Equal(t, int32(1), builds.Load())
}

func TestFingerprintReaderFieldsDiffersOnShape(t *testing.T) {
	a := []ReaderFieldDef{{Name: "id", SourceType: reflect.TypeOf(0), Nullable: false}}
	b := []ReaderFieldDef{{Name: "id", SourceType: reflect.TypeOf(""), Nullable: false}}
	assert.NotEqual(t, fingerprintReaderFields(a), fingerprintReaderFields(b))

	c := []ReaderFieldDef{{Name: "id", SourceType: reflect.TypeOf(0), Nullable: false}}
	assert.Equal(t, fingerprintReaderFields(a), fingerprintReaderFields(c))
}

func TestFingerprintDbFieldsIncludesExtra(t *testing.T) {
	fields := []DbField{{UnquotedName: "id", ValueType: reflect.TypeOf(0)}}
	assert.NotEqual(t, fingerprintDbFields(fields, "single"), fingerprintDbFields(fields, "batch"))
}

func TestBatchSizeToken(t *testing.T) {
	assert.Equal(t, "batch:3", batchSizeToken(3))
}
