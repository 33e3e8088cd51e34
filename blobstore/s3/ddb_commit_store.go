package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/velox/blobstore"
	"github.com/hupe1980/velox/snapshot"
)

var (
	// ErrConcurrentModification is returned when another publisher committed
	// the same CURRENT version first.
	ErrConcurrentModification = errors.New("concurrent modification detected")
	// ErrDanglingCommit is returned when CURRENT would name a snapshot whose
	// manifest has not been written.
	ErrDanglingCommit = errors.New("snapshot manifest missing")
)

// DDBClient is the subset of the DynamoDB API used by DDBCommitStore.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// Commit is one move of CURRENT.
type Commit struct {
	Version     uint64    `json:"version"`
	Snapshot    string    `json:"snapshot"`
	CommittedAt time.Time `json:"committed_at"`
}

// DDBCommitStore serves snapshot blobs from S3 and keeps the CURRENT pointer
// in DynamoDB. Every publish appends a commit item under a conditional
// write, so of two publishers racing on one version only the first wins.
// The commit items double as the history of CURRENT.
//
// Table schema:
//   - Partition key: base_uri (string), the snapshot target
//   - Sort key: version (number), starting at 1
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name velox-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	*Store
	ddb     DDBClient
	table   string
	baseURI string
	now     func() time.Time
}

var (
	_ blobstore.Store           = (*DDBCommitStore)(nil)
	_ blobstore.ExclusivePutter = (*DDBCommitStore)(nil)
)

// NewDDBCommitStore wraps store. baseURI identifies the snapshot target, for
// example "s3://bucket/prefix", and partitions the commit table.
func NewDDBCommitStore(store *Store, ddb DDBClient, table, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		Store:   store,
		ddb:     ddb,
		table:   table,
		baseURI: baseURI,
		now:     time.Now,
	}
}

// Open serves CURRENT from the latest commit and everything else from S3.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != snapshot.CurrentName {
		return s.Store.Open(ctx, name)
	}
	c, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, blobstore.ErrNotFound
	}
	return blobstore.NewBytesBlob([]byte(c.Snapshot)), nil
}

// Put commits CURRENT to DynamoDB and writes everything else to S3.
// CURRENT may only name a snapshot whose manifest is already stored.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != snapshot.CurrentName {
		return s.Store.Put(ctx, name, data)
	}
	return s.commit(ctx, strings.TrimSpace(string(data)))
}

// PutIfAbsent writes name to S3. CURRENT only moves through Put.
func (s *DDBCommitStore) PutIfAbsent(ctx context.Context, name string, data []byte) error {
	if name == snapshot.CurrentName {
		return fmt.Errorf("put %s: commits are not exclusive creates", name)
	}
	return s.Store.PutIfAbsent(ctx, name, data)
}

// Delete refuses to remove the manifest of the snapshot CURRENT names.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	if dir, base := path.Split(name); base == snapshot.ManifestName {
		c, err := s.latest(ctx)
		if err != nil {
			return err
		}
		if c != nil && strings.TrimSuffix(dir, "/") == c.Snapshot {
			return fmt.Errorf("delete %s: snapshot %s is current", name, c.Snapshot)
		}
	}
	return s.Store.Delete(ctx, name)
}

// History returns every commit of CURRENT, newest first.
func (s *DDBCommitStore) History(ctx context.Context) ([]Commit, error) {
	p := dynamodb.NewQueryPaginator(s.ddb, s.query(false, 0))
	var out []Commit
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", s.table, err)
		}
		for _, item := range page.Items {
			c, err := decodeCommit(item)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *DDBCommitStore) query(ascending bool, limit int32) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(ascending),
		ConsistentRead:   aws.Bool(true),
	}
	if limit > 0 {
		in.Limit = aws.Int32(limit)
	}
	return in
}

// latest returns the newest commit, or nil before the first one.
func (s *DDBCommitStore) latest(ctx context.Context) (*Commit, error) {
	resp, err := s.ddb.Query(ctx, s.query(false, 1))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	c, err := decodeCommit(resp.Items[0])
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *DDBCommitStore) commit(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("commit %s: empty snapshot name", snapshot.CurrentName)
	}
	ok, err := blobstore.Exists(ctx, s.Store, path.Join(name, snapshot.ManifestName))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDanglingCommit, name)
	}

	prev, err := s.latest(ctx)
	if err != nil {
		return err
	}
	var version uint64 = 1
	if prev != nil {
		version = prev.Version + 1
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"base_uri":     &types.AttributeValueMemberS{Value: s.baseURI},
			"version":      &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			"snapshot":     &types.AttributeValueMemberS{Value: name},
			"committed_at": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return fmt.Errorf("%w: version %d of %s", ErrConcurrentModification, version, s.baseURI)
	}
	if err != nil {
		return fmt.Errorf("put %s: %w", s.table, err)
	}
	return nil
}

func decodeCommit(item map[string]types.AttributeValue) (Commit, error) {
	var c Commit
	v, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return c, errors.New("commit item: missing version")
	}
	version, err := strconv.ParseUint(v.Value, 10, 64)
	if err != nil {
		return c, fmt.Errorf("commit item: version: %w", err)
	}
	name, ok := item["snapshot"].(*types.AttributeValueMemberS)
	if !ok {
		return c, errors.New("commit item: missing snapshot")
	}
	c.Version = version
	c.Snapshot = name.Value
	if at, ok := item["committed_at"].(*types.AttributeValueMemberS); ok {
		c.CommittedAt, _ = time.Parse(time.RFC3339Nano, at.Value)
	}
	return c, nil
}
