package seeders

import "maintenance-system/pkg/constants"

type seedUser struct {
	FullName string
	Email    string
	Phone    string
	Role     constants.Role
}

type seedTechnician struct {
	UserEmail      string
	Specialization string
	Location       string
}

type seedRequest struct {
	ClientEmail string
	Title       string
	Category    string
	Description string
	Location    string
	Urgency     string
}

var usersData = []seedUser{
	{FullName: "Администратор Системы", Email: "admin@maintenance.local", Phone: "+992900000001", Role: constants.RoleAdmin},
	{FullName: "Мадина Каримова", Email: "client@maintenance.local", Phone: "+992900000002", Role: constants.RoleClient},
	{FullName: "Алишер Назаров", Email: "alisher@maintenance.local", Phone: "+992900000003", Role: constants.RoleTechnician},
	{FullName: "Фаррух Юсупов", Email: "farrukh@maintenance.local", Phone: "+992900000004", Role: constants.RoleTechnician},
	{FullName: "Сино Рахимова", Email: "sino@maintenance.local", Phone: "+992900000005", Role: constants.RoleTechnician},
}

var techniciansData = []seedTechnician{
	{UserEmail: "alisher@maintenance.local", Specialization: "electrical", Location: "Block A"},
	{UserEmail: "farrukh@maintenance.local", Specialization: "plumbing", Location: "Block B"},
	{UserEmail: "sino@maintenance.local", Specialization: "hvac", Location: "Block C"},
}

var requestsData = []seedRequest{
	{ClientEmail: "client@maintenance.local", Title: "Не работает розетка", Category: "electrical", Description: "Искрит розетка в коридоре", Location: "Block A, 12", Urgency: "high"},
	{ClientEmail: "client@maintenance.local", Title: "Течёт кран", Category: "plumbing", Description: "Капает на кухне", Location: "Block B, 3", Urgency: "medium"},
	{ClientEmail: "client@maintenance.local", Title: "Шумит кондиционер", Category: "hvac", Description: "Сильный гул ночью", Location: "Block C, 7", Urgency: "low"},
	{ClientEmail: "client@maintenance.local", Title: "Перегорела лампа", Category: "electrical", Description: "Лестничная клетка", Location: "Block A, подъезд 2", Urgency: "low"},
}
