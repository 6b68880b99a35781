package entities

// WorkloadReportFilter - фильтр отчёта по загрузке техников.
type WorkloadReportFilter struct {
	OnlyAvailable  bool
	Specialization string
	Page           int
	PerPage        int
}

// WorkloadReportItem - строка отчёта: снимок техника и счётчики его заявок.
type WorkloadReportItem struct {
	Technician      Technician
	AssignedCount   int
	InProgressCount int
	CompletedCount  int
}
