package services

import (
	"github.com/aarondl/null/v8"

	"maintenance-system/internal/dto"
	"maintenance-system/internal/entities"
	"maintenance-system/pkg/constants"
	"maintenance-system/pkg/utils"
)

func nullUint64(v *uint64) null.Uint64 {
	if v == nil {
		return null.Uint64{}
	}
	return null.Uint64From(*v)
}

// rejectedFlag - исторически отклонённая заявка помечается "Yes", иначе пустая строка.
func rejectedFlag(v bool) string {
	if v {
		return constants.Yes
	}
	return ""
}

func requestToDTO(r *entities.Request) dto.RequestResponseDTO {
	out := dto.RequestResponseDTO{
		ID:                     r.ID,
		ClientID:               r.ClientID,
		Title:                  r.Title,
		Category:               r.Category,
		Description:            r.Description,
		Location:               r.Location,
		Urgency:                string(r.Urgency),
		PreferredDate:          utils.NullTimeToDate(r.PreferredDate),
		ImageRef:               null.NewString(r.ImageRef.String, r.ImageRef.Valid),
		ContactName:            r.ContactName,
		ContactEmail:           r.ContactEmail,
		ContactPhone:           r.ContactPhone,
		Status:                 r.Status.String(),
		Assigned:               constants.YesNo(r.IsAssigned()),
		AssignedTechnicianID:   nullUint64(r.AssignedTechnicianID),
		AssignedTechnicianName: null.NewString(r.AssignedTechnicianName.String, r.AssignedTechnicianName.Valid),
		ManuallyAssigned:       constants.YesNo(r.ManuallyAssigned),
		Rejected:               rejectedFlag(r.Rejected),
		Feedback:               null.NewString(r.Feedback.String, r.Feedback.Valid),
		CreatedAt:              utils.FormatTime(r.CreatedAt),
		AssignedAt:             utils.NullTimeToNullString(r.AssignedAt),
		AcceptedAt:             utils.NullTimeToNullString(r.AcceptedAt),
		CompletedAt:            utils.NullTimeToNullString(r.CompletedAt),
		CancelledAt:            utils.NullTimeToNullString(r.CancelledAt),
	}
	if r.Rating.Valid {
		out.Rating = null.Int16From(r.Rating.Int16)
	}
	return out
}

func requestsToDTO(list []entities.Request) []dto.RequestResponseDTO {
	out := make([]dto.RequestResponseDTO, 0, len(list))
	for i := range list {
		out = append(out, requestToDTO(&list[i]))
	}
	return out
}

func technicianToDTO(t *entities.Technician) dto.TechnicianResponseDTO {
	return dto.TechnicianResponseDTO{
		ID:              t.ID,
		TechnicianID:    t.TechnicianID.String(),
		UserID:          nullUint64(t.UserID),
		Name:            t.Name,
		Email:           t.Email,
		Specialization:  t.Specialization,
		Location:        t.Location,
		Availability:    constants.YesNo(t.Availability),
		Workload:        t.Workload,
		Rating:          t.RatingSum,
		NumberOfRatings: t.NumberOfRatings,
		AverageRating:   t.AverageRating(),
		CreatedAt:       utils.FormatTime(t.CreatedAt),
		UpdatedAt:       utils.FormatTime(t.UpdatedAt),
	}
}

func notificationToDTO(n *entities.Notification) dto.NotificationResponseDTO {
	return dto.NotificationResponseDTO{
		ID:            n.ID,
		RecipientRole: string(n.RecipientRole),
		RecipientID:   nullUint64(n.RecipientID),
		Message:       n.Message,
		Status:        string(n.Status),
		CreatedAt:     utils.FormatTime(n.CreatedAt),
	}
}

func taskReportToDTO(r *entities.TaskReport) dto.TaskReportResponseDTO {
	return dto.TaskReportResponseDTO{
		ID:               r.ID,
		RequestID:        r.RequestID,
		TechnicianID:     r.TechnicianID,
		ToolsUsed:        r.ToolsUsed,
		PartsUsed:        r.PartsUsed,
		TimeTakenMinutes: r.TimeTakenMinutes,
		Success:          constants.YesNo(r.Success),
		Remarks:          r.Remarks,
		CreatedAt:        utils.FormatTime(r.CreatedAt),
	}
}

func workloadItemToDTO(item *entities.WorkloadReportItem) dto.WorkloadReportItemDTO {
	t := &item.Technician
	return dto.WorkloadReportItemDTO{
		TechnicianID:    t.TechnicianID.String(),
		Name:            t.Name,
		Specialization:  t.Specialization,
		Location:        t.Location,
		Availability:    constants.YesNo(t.Availability),
		Workload:        t.Workload,
		AssignedCount:   item.AssignedCount,
		InProgressCount: item.InProgressCount,
		CompletedCount:  item.CompletedCount,
		RatingSum:       t.RatingSum,
		NumberOfRatings: t.NumberOfRatings,
		AverageRating:   t.AverageRating(),
	}
}
