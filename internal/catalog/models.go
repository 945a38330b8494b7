package catalog

// Data models and columns on the ERP server.
const (
	CategoryModel = "DMS_CATEGORIES"
	QuestionModel = "DMS_CATEGORY_AI_QUESTIONS"
	ModuleModel   = "DMS_MODULES"

	ColCategoryName = "CATEGORY_NAME"
	ColDisplayName  = "DISPLAY_NAME"
	ColModuleName   = "MODULE_NAME"
	ColSearchTags   = "SEARCH_TAGS"
	ColQuestion     = "QUESTION_FOR_AI"
	ColRefKey       = "REF_KEY"
	ColIsMandatory  = "IS_MANDATORY"
)

type Category struct {
	Name        string `json:"name" rpc:"CATEGORY_NAME" validate:"required"`
	DisplayName string `json:"display_name" rpc:"DISPLAY_NAME"`
	ModuleName  string `json:"module_name" rpc:"MODULE_NAME"`
	SearchTags  string `json:"search_tags" rpc:"SEARCH_TAGS"` // comma-separated
}

// AIQuestion is a question template owned by a category.
type AIQuestion struct {
	CategoryName string `json:"category_name" rpc:"CATEGORY_NAME" validate:"required"`
	QuestionText string `json:"question" rpc:"QUESTION_FOR_AI" validate:"required"`
	RefKey       string `json:"ref_key" rpc:"REF_KEY"`
	IsMandatory  bool   `json:"is_mandatory" rpc:"IS_MANDATORY"`
}

type Module struct {
	Name        string `json:"name" rpc:"MODULE_NAME"`
	DisplayName string `json:"display_name" rpc:"DISPLAY_NAME"`
}
