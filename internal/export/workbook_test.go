package export_test

import (
	"bytes"
	"reflect"
	"testing"

	"practicelab/internal/export"
	"practicelab/internal/preview"

	"github.com/xuri/excelize/v2"
)

func TestWorkbook(t *testing.T) {
	p := preview.Preview{
		Columns: []string{"name", "qty"},
		Rows:    [][]any{{"Ann", int64(3)}, {"Bob", int64(5)}},
	}
	data, err := export.Workbook("Sales: Q1", p)
	if err != nil {
		t.Fatalf("workbook failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook failed: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if !reflect.DeepEqual(sheets, []string{"Sales_ Q1"}) {
		t.Fatalf("unexpected sheets: %v", sheets)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		t.Fatalf("read rows failed: %v", err)
	}
	want := [][]string{{"name", "qty"}, {"Ann", "3"}, {"Bob", "5"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestSheetName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "Dataset"},
		{"a/b", "a_b"},
		{"'quoted'", "quoted"},
		{"a very long dataset label that overflows", "a very long dataset label that"},
	}
	for _, tc := range cases {
		if got := export.SheetName(tc.in); got != tc.want {
			t.Fatalf("SheetName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := export.FileName("my data"); got != "my_data.xlsx" {
		t.Fatalf("unexpected file name %q", got)
	}
}
