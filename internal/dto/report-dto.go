package dto

type WorkloadReportItemDTO struct {
	TechnicianID    string  `json:"technician_id"`
	Name            string  `json:"name"`
	Specialization  string  `json:"specialization"`
	Location        string  `json:"location"`
	Availability    string  `json:"availability"`
	Workload        int     `json:"workload"`
	AssignedCount   int     `json:"assigned_count"`
	InProgressCount int     `json:"in_progress_count"`
	CompletedCount  int     `json:"completed_count"`
	RatingSum       float64 `json:"rating_sum"`
	NumberOfRatings int     `json:"number_of_ratings"`
	AverageRating   float64 `json:"average_rating"`
}
