package types

// Well-known modules. Any name accepted by ValidateModule is a module; these
// are the ones the core treats specially.
const (
	ModuleAdangal     = "adangal"
	ModuleChitta      = "chitta"
	ModuleARegister   = "a_register"
	ModuleFMB         = "fmb"
	ModuleLandSummary = "land_register_summary"
)

// TotalExtentColumn is the derived column recomputed on every read of the
// land-register summary module and never stored.
const TotalExtentColumn = "totalExtent"

// Local store table names.
const (
	TableFiles      = "files"
	TableRecords    = "records"
	TableFMB        = "fmb"
	TableKML        = "kml"
	TableRecycleBin = "recycle_bin"
	TableSummaries  = "summaries"
	TableAttendance = "attendance"
)

// StandardTableNames lists every local store table.
var StandardTableNames = []string{
	TableFiles,
	TableRecords,
	TableFMB,
	TableKML,
	TableRecycleBin,
	TableSummaries,
	TableAttendance,
}

// RecordTable returns the local table holding records of module. Summary
// rows live in their own table.
func RecordTable(module string) string {
	if module == ModuleLandSummary {
		return TableSummaries
	}
	return TableRecords
}
