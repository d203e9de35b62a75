package bonus

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportWhereNumbersEveryFilterCombination(t *testing.T) {
	type clause struct {
		set  func(f *ReportFilter)
		sql  string
		want interface{}
	}
	optional := []clause{
		{func(f *ReportFilter) { f.CaseNumber = ptr(" CASE-2024 ") }, "i.case_number ILIKE $%d", "%CASE-2024%"},
		{func(f *ReportFilter) { f.VendorID = ptr(int64(7)) }, "i.vendor_id = $%d", int64(7)},
		{func(f *ReportFilter) { f.ClientID = ptr(int64(11)) }, "i.client_id = $%d", int64(11)},
		{func(f *ReportFilter) { f.VendorTaxID = ptr("12.345.678-9") }, "regexp_replace(COALESCE(v.tax_id, ''), '[.-]', '', 'g') ILIKE $%d", "%123456789%"},
	}

	for mask := 0; mask < 1<<len(optional); mask++ {
		filter := januaryFilter()
		conditions := []string{"i.issued_on BETWEEN $1 AND $2"}
		wantArgs := []interface{}{
			pgtype.Date{Time: janStart, Valid: true},
			pgtype.Date{Time: janEnd, Valid: true},
		}
		for i, c := range optional {
			if mask&(1<<i) == 0 {
				continue
			}
			c.set(&filter)
			conditions = append(conditions, fmt.Sprintf(c.sql, len(wantArgs)+1))
			wantArgs = append(wantArgs, c.want)
		}

		t.Run(fmt.Sprintf("mask_%04b", mask), func(t *testing.T) {
			where, args, next := reportWhere(filter)
			assert.Equal(t, "WHERE "+strings.Join(conditions, " AND "), where)
			require.Equal(t, wantArgs, args)
			assert.Equal(t, len(wantArgs)+1, next)
		})
	}
}

func TestReportWhereIgnoresBlankFilters(t *testing.T) {
	filter := januaryFilter()
	filter.CaseNumber = ptr("   ")
	filter.VendorTaxID = ptr(".-")

	where, args, next := reportWhere(filter)
	assert.Equal(t, "WHERE i.issued_on BETWEEN $1 AND $2", where)
	assert.Len(t, args, 2)
	assert.Equal(t, 3, next)
}

func TestNormalizeTaxID(t *testing.T) {
	assert.Equal(t, "123456789", NormalizeTaxID(" 12.345.678-9 "))
	assert.Equal(t, "", NormalizeTaxID(".-"))
}
