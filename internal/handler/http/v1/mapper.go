package v1

import "github.com/shenikar/sos_dispatch_system/internal/models"

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа.
// Презентационные метаданные статуса берутся из таблицы перечисления,
// а не из строковых карт на клиенте.
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:          model.ID,
		DispatchID:  model.DispatchID,
		Latitude:    model.Latitude,
		Longitude:   model.Longitude,
		Status:      model.Status.String(),
		StatusLabel: model.Status.Label(),
		StatusColor: model.Status.Color(),
		AudioURL:    model.AudioURL,
		OwnerUserID: model.OwnerUserID,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

// ModelToUserResponse преобразует учётную запись в DTO без секретов
func ModelToUserResponse(model *models.User) UserResponse {
	return UserResponse{
		ID:    model.ID,
		Name:  model.Name,
		Email: model.Email,
		Role:  model.Role.String(),
	}
}
