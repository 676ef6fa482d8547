package dblayer

import (
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidateFollowChange(t *testing.T) {
	tests := []struct {
		name       string
		caller     string
		user       string
		edgeExists bool
		follow     bool
		wantErr    error
	}{
		{"fresh follow", "alice", "bob", false, true, nil},
		{"unfollow existing edge", "alice", "bob", true, false, nil},
		{"self follow", "alice", "alice", false, true, ErrInvalidArgument},
		{"self unfollow", "alice", "alice", true, false, ErrInvalidArgument},
		{"double follow", "alice", "bob", true, true, ErrAlreadyInRelation},
		{"unfollow absent edge", "alice", "bob", false, false, ErrNotInRelation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateFollowChange(tc.caller, tc.user, tc.edgeExists, tc.follow)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("validateFollowChange: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("validateFollowChange = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

// IsFollowing treats a missing edge or missing profile as "not following"
// rather than an error; the count and id getters do the opposite and fail
// with NotFound. Both halves of that asymmetry are pinned down here.
func TestIsFollowingLenientOnMissing(t *testing.T) {
	missing := status.Error(codes.NotFound, "no such document")
	following, err := isFollowingFromLookup(false, missing)
	if err != nil {
		t.Fatalf("missing edge should not error, got %v", err)
	}
	if following {
		t.Error("missing edge should read as not following")
	}

	following, err = isFollowingFromLookup(true, nil)
	if err != nil || !following {
		t.Errorf("existing edge = (%v, %v), want (true, nil)", following, err)
	}

	following, err = isFollowingFromLookup(false, nil)
	if err != nil || following {
		t.Errorf("absent edge = (%v, %v), want (false, nil)", following, err)
	}
}

func TestIsFollowingSurfacesTransportErrors(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "no connection")
	if _, err := isFollowingFromLookup(false, unavailable); err == nil {
		t.Error("transport failure must surface, not read as false-and-fine")
	}
}

func TestProfileLookupErrorIsStrict(t *testing.T) {
	missing := status.Error(codes.NotFound, "no such document")
	err := profileLookupError(missing, "user-1", "reading followerCount for user-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing profile = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "user-1") {
		t.Errorf("error should name the profile, got %v", err)
	}

	unavailable := status.Error(codes.Unavailable, "no connection")
	if err := profileLookupError(unavailable, "user-1", "reading followerCount for user-1"); !errors.Is(err, ErrNetworkUnavailable) {
		t.Errorf("unavailable store = %v, want ErrNetworkUnavailable", err)
	}
}

func TestCounterFromProfileDoc(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]interface{}
		want int64
	}{
		{"int64", map[string]interface{}{followerCountField: int64(5)}, 5},
		{"int", map[string]interface{}{followerCountField: 3}, 3},
		{"float64", map[string]interface{}{followerCountField: float64(2)}, 2},
		{"missing defaults to zero", map[string]interface{}{}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := counterFromProfileDoc(tc.doc, "user-1", followerCountField)
			if err != nil {
				t.Fatalf("counterFromProfileDoc: %v", err)
			}
			if got != tc.want {
				t.Errorf("counterFromProfileDoc = %d, want %d", got, tc.want)
			}
		})
	}

	malformed := map[string]interface{}{followerCountField: "seven"}
	if _, err := counterFromProfileDoc(malformed, "user-1", followerCountField); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("malformed counter = %v, want ErrInvalidArgument", err)
	}
}

func TestChunkOpsRespectsBatchLimit(t *testing.T) {
	makeOps := func(n int) []batchOp {
		ops := make([]batchOp, n)
		for i := range ops {
			ops[i] = func(*firestore.WriteBatch) {}
		}
		return ops
	}

	tests := []struct {
		ops        int
		wantChunks []int
	}{
		{0, nil},
		{17, []int{17}},
		{500, []int{500}},
		{501, []int{500, 1}},
		// 400 followers and followees is 1202 writes with the two profile
		// deletes, well past the single-batch limit.
		{1202, []int{500, 500, 202}},
	}
	for _, tc := range tests {
		chunks := chunkOps(makeOps(tc.ops), maxBatchWrites)
		if len(chunks) != len(tc.wantChunks) {
			t.Errorf("chunkOps(%d ops) produced %d chunks, want %d", tc.ops, len(chunks), len(tc.wantChunks))
			continue
		}
		for i, chunk := range chunks {
			if len(chunk) != tc.wantChunks[i] {
				t.Errorf("chunkOps(%d ops) chunk %d has %d writes, want %d", tc.ops, i, len(chunk), tc.wantChunks[i])
			}
			if len(chunk) > maxBatchWrites {
				t.Errorf("chunkOps(%d ops) chunk %d exceeds the batch limit", tc.ops, i)
			}
		}
	}
}
