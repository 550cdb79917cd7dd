package api

import (
	"net/http/httptest"
	"testing"
)

func TestParseLimitOffset(t *testing.T) {
	cases := []struct {
		url        string
		wantLimit  int
		wantOffset int
	}{
		{"/x", 20, 0},
		{"/x?limit=5&offset=10", 5, 10},
		{"/x?limit=1000", 100, 0},
		{"/x?limit=abc&offset=-1", 20, 0},
		{"/x?limit=0", 20, 0},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", tc.url, nil)
		limit, offset := ParseLimitOffset(r)
		if limit != tc.wantLimit || offset != tc.wantOffset {
			t.Errorf("%s: got (%d,%d), want (%d,%d)", tc.url, limit, offset, tc.wantLimit, tc.wantOffset)
		}
	}
}
