package bank

import "github.com/BTreeMap/MindScreen/internal/models"

// DefaultVersion identifies the built-in catalog.
const DefaultVersion = "2024.1"

var (
	frequencyOptions  = []string{"Not at all", "Several days", "More than half the days", "Nearly every day"}
	intensityOptions  = []string{"Not at all", "Rarely", "Sometimes", "Often", "Very often"}
	occurrenceOptions = []string{"Never", "Rarely", "Sometimes", "Often", "Very often"}
)

func valueTrigger(threshold float64) *models.FollowUpTrigger {
	return &models.FollowUpTrigger{Condition: models.TriggerConditionValue, Value: threshold, Threshold: threshold}
}

// DefaultDefinition returns the built-in screening catalog.
//
// Subscale membership is explicit: the brief PHQ-2 and GAD-2 items are the first
// two items of PHQ-9 and GAD-7, so they count toward those totals alongside the
// secondary deep-dive items.
func DefaultDefinition() Definition {
	return Definition{
		Version: DefaultVersion,
		Primary: []models.Question{
			{
				ID:              "phq2_1",
				Text:            "Over the past two weeks, how often have you felt little interest or pleasure in doing things?",
				Type:            models.QuestionTypeChoice,
				Options:         frequencyOptions,
				Category:        models.CategoryMood,
				Tier:            models.TierPrimary,
				Weight:          1,
				FollowUpTrigger: valueTrigger(1),
				Subscale:        models.SubscalePHQ9,
			},
			{
				ID:              "phq2_2",
				Text:            "Over the past two weeks, how often have you felt down, depressed, or hopeless?",
				Type:            models.QuestionTypeChoice,
				Options:         frequencyOptions,
				Category:        models.CategoryMood,
				Tier:            models.TierPrimary,
				Weight:          1,
				FollowUpTrigger: valueTrigger(1),
				Subscale:        models.SubscalePHQ9,
			},
			{
				ID:              "gad2_1",
				Text:            "Over the past two weeks, how often have you felt nervous, anxious, or on edge?",
				Type:            models.QuestionTypeChoice,
				Options:         frequencyOptions,
				Category:        models.CategoryAnxiety,
				Tier:            models.TierPrimary,
				Weight:          1,
				FollowUpTrigger: valueTrigger(1),
				Subscale:        models.SubscaleGAD7,
			},
			{
				ID:              "gad2_2",
				Text:            "Over the past two weeks, how often have you been unable to stop or control worrying?",
				Type:            models.QuestionTypeChoice,
				Options:         frequencyOptions,
				Category:        models.CategoryAnxiety,
				Tier:            models.TierPrimary,
				Weight:          1,
				FollowUpTrigger: valueTrigger(1),
				Subscale:        models.SubscaleGAD7,
			},
			{
				ID:              "cognitive_1",
				Text:            "Have you experienced difficulties with memory, concentration, or problem-solving that interfere with daily activities?",
				Type:            models.QuestionTypeChoice,
				Options:         intensityOptions,
				Category:        models.CategoryCognitive,
				Tier:            models.TierPrimary,
				Weight:          1,
				FollowUpTrigger: valueTrigger(2),
			},
			{
				ID:       "stress_1",
				Text:     "How often have you felt overwhelmed in the past month?",
				Type:     models.QuestionTypeChoice,
				Options:  occurrenceOptions,
				Category: models.CategoryStress,
				Tier:     models.TierPrimary,
				Weight:   1,
			},
			{
				ID:       "stress_2",
				Text:     "On a scale of 1-10, how would you rate your overall mental health in the past month?",
				Type:     models.QuestionTypeScale,
				Options:  []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"},
				Category: models.CategoryStress,
				Tier:     models.TierPrimary,
				Weight:   1,
			},
			{
				ID:       "sleep_1",
				Text:     "Have you had trouble falling or staying asleep, or sleeping too much?",
				Type:     models.QuestionTypeChoice,
				Options:  frequencyOptions,
				Category: models.CategorySleep,
				Tier:     models.TierPrimary,
				Weight:   1,
			},
			{
				ID:       "sleep_2",
				Text:     "Have you been feeling tired or having little energy?",
				Type:     models.QuestionTypeChoice,
				Options:  frequencyOptions,
				Category: models.CategorySleep,
				Tier:     models.TierPrimary,
				Weight:   1,
			},
		},
		Secondary: []models.Question{
			phq9Item("phq9_3", "Over the past two weeks, how often have you had trouble with appetite or eating too much/too little?", 1),
			phq9Item("phq9_4", "Over the past two weeks, how often have you felt bad about yourself or that you are a failure?", 1),
			phq9Item("phq9_5", "Over the past two weeks, how often have you had trouble concentrating?", 1),
			phq9Item("phq9_6", "Over the past two weeks, how often have you moved or spoken so slowly that other people could have noticed?", 1),
			phq9Item("phq9_7", "Over the past two weeks, how often have you had thoughts that you would be better off dead or of hurting yourself in some way?", 3),
			gad7Item("gad7_3", "Do you experience physical symptoms like muscle tension, headaches, or stomach problems when anxious?"),
			gad7Item("gad7_4", "How often do your worry patterns interfere with daily activities or relationships?"),
			gad7Item("gad7_5", "How often do you find it difficult to control the worry?"),
			{
				ID:       "psych_1",
				Text:     "Have you had experiences that others might find unusual or hard to believe?",
				Type:     models.QuestionTypeChoice,
				Options:  occurrenceOptions,
				Category: models.CategoryCognitive,
				Tier:     models.TierSecondary,
				Weight:   2,
			},
			{
				ID:       "psych_2",
				Text:     "Do you sometimes have difficulty organizing your thoughts or making sense of things?",
				Type:     models.QuestionTypeChoice,
				Options:  occurrenceOptions,
				Category: models.CategoryCognitive,
				Tier:     models.TierSecondary,
				Weight:   2,
			},
			{
				ID:       "substance_1",
				Text:     "How often do you use alcohol or other substances to cope with emotions or stress?",
				Type:     models.QuestionTypeChoice,
				Options:  []string{"Never", "Monthly or less", "2-4 times a month", "2-3 times a week", "4+ times a week"},
				Category: models.CategorySubstance,
				Tier:     models.TierSecondary,
				Weight:   2,
			},
			{
				ID:       "substance_2",
				Text:     "Has your use of alcohol or other substances affected your daily responsibilities?",
				Type:     models.QuestionTypeChoice,
				Options:  []string{"Never", "Less than monthly", "Monthly", "Weekly", "Daily or almost daily"},
				Category: models.CategorySubstance,
				Tier:     models.TierSecondary,
				Weight:   2,
			},
		},
		Open: []models.Question{
			{
				ID:       "open_1",
				Text:     "Please briefly describe what concerns you most about your mental health right now.",
				Type:     models.QuestionTypeText,
				Category: models.CategoryStress,
				Tier:     models.TierPrimary,
				Weight:   2,
			},
			{
				ID:       "open_2",
				Text:     "How have these feelings or experiences affected your daily life?",
				Type:     models.QuestionTypeText,
				Category: models.CategoryStress,
				Tier:     models.TierPrimary,
				Weight:   2,
			},
		},
	}
}

func phq9Item(id, text string, weight float64) models.Question {
	return models.Question{
		ID:       id,
		Text:     text,
		Type:     models.QuestionTypeChoice,
		Options:  frequencyOptions,
		Category: models.CategoryMood,
		Tier:     models.TierSecondary,
		Weight:   weight,
		Subscale: models.SubscalePHQ9,
	}
}

func gad7Item(id, text string) models.Question {
	return models.Question{
		ID:       id,
		Text:     text,
		Type:     models.QuestionTypeChoice,
		Options:  frequencyOptions,
		Category: models.CategoryAnxiety,
		Tier:     models.TierSecondary,
		Weight:   1,
		Subscale: models.SubscaleGAD7,
	}
}

// Default returns the built-in bank. It panics only if the built-in catalog is invalid.
func Default() *Bank {
	b, err := New(DefaultDefinition())
	if err != nil {
		panic("built-in question bank is invalid: " + err.Error())
	}
	return b
}
