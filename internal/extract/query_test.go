package extract

import (
	"reflect"
	"testing"
)

func TestExtractQueryReferences(t *testing.T) {
	cases := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "from and join",
			sql:  "SELECT * FROM de_a JOIN de_b ON de_a.id = de_b.id",
			want: []string{"de_a", "de_b"},
		},
		{
			name: "system-prefixed table filtered",
			sql:  "SELECT top 10 * FROM _sys_x",
			want: nil,
		},
		{
			name: "dual filtered case-insensitively",
			sql:  "SELECT 1 FROM DUAL",
			want: nil,
		},
		{
			name: "bracketed and schema-qualified identifiers",
			sql:  `SELECT * FROM [dbo].[de_a] join "de_b" on 1=1`,
			want: []string{"de_a", "de_b"},
		},
		{
			name: "duplicate references deduped",
			sql:  "SELECT * FROM de_a JOIN de_a ON 1=1",
			want: []string{"de_a"},
		},
		{
			name: "empty text",
			sql:  "",
			want: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractQueryReferences(tc.sql)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExtractQueryReferences(%q) = %v, want %v", tc.sql, got, tc.want)
			}
		})
	}
}

func TestQueryHappyPathFixture(t *testing.T) {
	// Q1 reads de_a/de_b; Q2 references only a filtered system table; Q3
	// reads de_a.
	q1 := ExtractQueryReferences("SELECT * FROM de_a JOIN de_b ON de_a.id = de_b.id")
	if !reflect.DeepEqual(q1, []string{"de_a", "de_b"}) {
		t.Fatalf("Q1 refs = %v", q1)
	}
	q2 := ExtractQueryReferences("SELECT * FROM _sys_x")
	if len(q2) != 0 {
		t.Fatalf("Q2 refs should be empty, got %v", q2)
	}
	q3 := ExtractQueryReferences("SELECT * FROM de_a")
	if !reflect.DeepEqual(q3, []string{"de_a"}) {
		t.Fatalf("Q3 refs = %v", q3)
	}
}
