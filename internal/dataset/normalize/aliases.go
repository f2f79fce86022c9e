package normalize

// Alias lists are probed in order; the first non-empty value wins. Dotted
// entries descend into nested objects.
var (
	idKeys = []string{"id", "dataset_id", "datasetId", "key", "schema_info.id"}

	nameKeys = []string{"name", "label", "title", "dataset_name", "datasetName", "schema_info.name", "schema_info.dataset_name"}

	descriptionKeys = []string{"description", "desc", "summary", "business_context", "businessContext", "schema_info.description"}

	subjectKeys = []string{"subject", "subject_name", "subjectName", "topic", "schema_info.subject"}

	sqlKeys = []string{
		"create_sql", "creation_sql", "createSql", "creationSql", "setup_sql", "setupSql", "sql", "ddl",
		"schema_info.create_sql", "schema_info.creation_sql", "schema_info.setup_sql", "schema_info.sql",
	}

	interpreterKeys = []string{
		"create_python", "creation_python", "createPython", "creationPython", "setup_python", "setupPython",
		"setup_script", "python", "lua", "schema_info.create_python", "schema_info.creation_python",
	}

	csvKeys = []string{
		"dataset_csv_raw", "datasetCsvRaw", "csv", "raw_csv", "rawCsv", "csv_data", "csvData", "data",
		"schema_info.dataset_csv_raw", "schema_info.csv",
	}

	columnKeys = []string{"columns", "headers", "fields", "schema_info.columns", "schema_info.headers"}

	rowKeys = []string{"rows", "records", "data", "sample_data", "sampleData", "schema_info.data", "schema_info.rows", "schema_info.sample_data"}

	tableKeys = []string{"table_name", "tableName", "table", "schema_info.table_name", "schema_info.tableName"}

	tableListKeys = []string{"table_names", "tableNames", "tables", "schema_info.table_names", "schema_info.tables"}

	columnNameKeys = []string{"name", "column_name", "columnName", "field", "title", "key"}

	// wrapperKeys hold a nested descriptor when the outer object carries none.
	wrapperKeys = []string{"dataset", "exerciseDataset", "payload"}
)
