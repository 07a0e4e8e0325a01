package handler

import (
	"nutridash/internal/nutrition/insights"
	"nutridash/internal/nutrition/models"
	"nutridash/internal/nutrition/viewmodel"
)

type ViewResponse struct {
	Records       []models.NutritionRecord `json:"records"`
	Search        string                   `json:"search"`
	Page          int                      `json:"page"`
	PageSize      int                      `json:"page_size"`
	TotalPages    int                      `json:"total_pages"`
	PageNumbers   []int                    `json:"page_numbers"`
	FilteredCount int                      `json:"filtered_count"`
	TotalCount    int                      `json:"total_count"`
	PendingDelete string                   `json:"pending_delete,omitempty"`
}

func toViewResponse(v viewmodel.View) ViewResponse {
	recs := v.Records
	if recs == nil {
		recs = []models.NutritionRecord{}
	}
	return ViewResponse{
		Records:       recs,
		Search:        v.Search,
		Page:          v.Page,
		PageSize:      v.PageSize,
		TotalPages:    v.TotalPages,
		PageNumbers:   v.PageNumbers,
		FilteredCount: v.FilteredCount,
		TotalCount:    v.TotalCount,
		PendingDelete: v.PendingDelete,
	}
}

type EditFormResponse struct {
	ID   string            `json:"id"`
	Form models.RecordForm `json:"form"`
}

type PendingDeleteResponse struct {
	Pending models.NutritionRecord `json:"pending"`
}

type DeletedResponse struct {
	Deleted string       `json:"deleted"`
	View    ViewResponse `json:"view"`
}

type SummariesResponse struct {
	Count     int                `json:"count"`
	Summaries []insights.Summary `json:"summaries"`
}
