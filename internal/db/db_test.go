package db

import "testing"

func TestMigrateURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "postgres://u:p@h:5432/d?sslmode=disable", want: "pgx5://u:p@h:5432/d?sslmode=disable"},
		{in: "postgresql://u@h/d", want: "pgx5://u@h/d"},
		{in: "pgx5://u@h/d", want: "pgx5://u@h/d"},
	}
	for _, tc := range cases {
		if got := MigrateURL(tc.in); got != tc.want {
			t.Fatalf("MigrateURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
