package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "account not indexed yet",
			err:  errors.New("rpc error: could not find account"),
			want: true,
		},
		{
			name: "expired blockhash",
			err:  errors.New("Blockhash not found"),
			want: true,
		},
		{
			name: "node behind",
			err:  errors.New("RPC node is behind by 150 slots"),
			want: true,
		},
		{
			name: "request timed out",
			err:  fmt.Errorf("send transaction: %w", errors.New("request timed out")),
			want: true,
		},
		{
			name: "context deadline",
			err:  context.DeadlineExceeded,
			want: true,
		},
		{
			name: "insufficient funds is permanent",
			err:  errors.New("Transfer: insufficient funds"),
			want: false,
		},
		{
			name: "invalid instruction is permanent",
			err:  errors.New("invalid instruction data"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
