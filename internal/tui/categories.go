package tui

type Category struct {
	ID          string
	Name        string
	Description string
	Icon        string
}

var Categories = []Category{
	{ID: "logging", Name: "Logging", Description: "Log level and format", Icon: ""},
	{ID: "transport", Name: "Transport", Description: "Credential rounds and connect retries", Icon: ""},
	{ID: "fetch", Name: "Fetch", Description: "Prune, progress and tag defaults", Icon: ""},
}

func GetCategoryByID(id string) *Category {
	for i := range Categories {
		if Categories[i].ID == id {
			return &Categories[i]
		}
	}
	return nil
}

func GetCategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = c.Name
	}
	return names
}
