package s3

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/velox/blobstore"
	"github.com/hupe1980/velox/snapshot"
)

// commitTable is an in-memory commit table keyed by base_uri and version.
type commitTable struct {
	mu    sync.Mutex
	items map[string]map[uint64]map[string]types.AttributeValue
}

func newCommitTable() *commitTable {
	return &commitTable{items: make(map[string]map[uint64]map[string]types.AttributeValue)}
}

func (c *commitTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	uri := in.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version, err := strconv.ParseUint(in.Item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items[uri] == nil {
		c.items[uri] = make(map[uint64]map[string]types.AttributeValue)
	}
	if _, ok := c.items[uri][version]; ok && aws.ToString(in.ConditionExpression) == "attribute_not_exists(version)" {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional request failed")}
	}
	c.items[uri][version] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (c *commitTable) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	uri := in.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	c.mu.Lock()
	versions := make([]uint64, 0, len(c.items[uri]))
	for v := range c.items[uri] {
		versions = append(versions, v)
	}
	slices.SortFunc(versions, func(a, b uint64) int {
		if aws.ToBool(in.ScanIndexForward) {
			return cmp.Compare(a, b)
		}
		return cmp.Compare(b, a)
	})
	if in.Limit != nil && int(*in.Limit) < len(versions) {
		versions = versions[:*in.Limit]
	}
	out := &dynamodb.QueryOutput{}
	for _, v := range versions {
		out.Items = append(out.Items, c.items[uri][v])
	}
	c.mu.Unlock()
	return out, nil
}

// newCommitStore returns a store whose S3 side holds a manifest for every
// snapshot except those named "ghost".
func newCommitStore(table *commitTable, baseURI string) (*DDBCommitStore, *MockS3Client) {
	client := new(MockS3Client)
	client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return strings.HasPrefix(aws.ToString(in.Key), "test/ghost/")
	})).Return(nil, &s3types.NotFound{})
	client.On("HeadObject", mock.Anything, mock.Anything).
		Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(2)}, nil)
	return NewDDBCommitStore(NewStore(client, "test-bucket", "test/"), table, "velox-commits", baseURI), client
}

func TestDDBCommitStore_CommitAndOpen(t *testing.T) {
	ctx := context.Background()
	store, _ := newCommitStore(newCommitTable(), "s3://test-bucket/test")

	_, err := store.Open(ctx, snapshot.CurrentName)
	require.ErrorIs(t, err, blobstore.ErrNotFound)
	_, err = snapshot.Current(ctx, store)
	require.ErrorIs(t, err, snapshot.ErrNoSnapshot)

	require.NoError(t, store.Put(ctx, snapshot.CurrentName, []byte("s1")))
	require.NoError(t, store.Put(ctx, snapshot.CurrentName, []byte("s2\n")))

	data, err := blobstore.Get(ctx, store, snapshot.CurrentName)
	require.NoError(t, err)
	assert.Equal(t, "s2", string(data))

	cur, err := snapshot.Current(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "s2", cur)
}

func TestDDBCommitStore_RejectsDanglingCommit(t *testing.T) {
	ctx := context.Background()
	table := newCommitTable()
	store, _ := newCommitStore(table, "s3://test-bucket/test")

	err := store.Put(ctx, snapshot.CurrentName, []byte("ghost"))
	assert.ErrorIs(t, err, ErrDanglingCommit)
	assert.Error(t, store.Put(ctx, snapshot.CurrentName, []byte("  ")))

	history, err := store.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDDBCommitStore_History(t *testing.T) {
	ctx := context.Background()
	store, _ := newCommitStore(newCommitTable(), "s3://test-bucket/test")
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	store.now = func() time.Time { return at }

	for i := 1; i <= 12; i++ {
		require.NoError(t, store.Put(ctx, snapshot.CurrentName, []byte(fmt.Sprintf("snap-%02d", i))))
	}

	history, err := store.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 12)
	assert.Equal(t, Commit{Version: 12, Snapshot: "snap-12", CommittedAt: at}, history[0])
	assert.Equal(t, Commit{Version: 1, Snapshot: "snap-01", CommittedAt: at}, history[11])
}

func TestDDBCommitStore_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	store, _ := newCommitStore(newCommitTable(), "s3://test-bucket/test")
	require.NoError(t, store.Put(ctx, snapshot.CurrentName, []byte("base")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.Put(ctx, snapshot.CurrentName, []byte(fmt.Sprintf("racer-%d", i)))
			if err != nil {
				assert.ErrorIs(t, err, ErrConcurrentModification)
				return
			}
			mu.Lock()
			successes++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	history, err := store.History(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, successes, 1)
	require.Len(t, history, successes+1)
	for i, c := range history {
		assert.Equal(t, uint64(len(history)-i), c.Version, "versions have no gaps or duplicates")
	}
}

func TestDDBCommitStore_IsolatedTargets(t *testing.T) {
	ctx := context.Background()
	table := newCommitTable()
	a, _ := newCommitStore(table, "s3://bucket-a/path")
	b, _ := newCommitStore(table, "s3://bucket-b/path")

	require.NoError(t, a.Put(ctx, snapshot.CurrentName, []byte("snap-a")))
	require.NoError(t, b.Put(ctx, snapshot.CurrentName, []byte("snap-b")))

	cur, err := snapshot.Current(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "snap-a", cur)
	cur, err = snapshot.Current(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "snap-b", cur)
}

func TestDDBCommitStore_DeleteKeepsCurrentManifest(t *testing.T) {
	ctx := context.Background()
	store, client := newCommitStore(newCommitTable(), "s3://test-bucket/test")
	require.NoError(t, store.Put(ctx, snapshot.CurrentName, []byte("s1")))
	require.NoError(t, store.Put(ctx, snapshot.CurrentName, []byte("s2")))

	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "test/s1/"+snapshot.ManifestName
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	err := store.Delete(ctx, "s2/"+snapshot.ManifestName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is current")

	require.NoError(t, store.Delete(ctx, "s1/"+snapshot.ManifestName))
	client.AssertExpectations(t)
}

func TestDDBCommitStore_QueryError(t *testing.T) {
	boom := errors.New("throttled")
	store := NewDDBCommitStore(NewStore(new(MockS3Client), "b", ""), failingDDB{err: boom}, "t", "s3://b")

	_, err := store.Open(context.Background(), snapshot.CurrentName)
	assert.ErrorIs(t, err, boom)
	_, err = store.History(context.Background())
	assert.ErrorIs(t, err, boom)
}

type failingDDB struct{ err error }

func (f failingDDB) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return nil, f.err
}

func (f failingDDB) Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return nil, f.err
}
