// Package fixtures loads the demo academy: five accounts and one two-part formation.
package fixtures

import (
	"context"

	"github.com/pkg/errors"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/user"
)

// DefaultPassword is given to every demo account. They must change it on first login.
const DefaultPassword = "Academy@2024"

type (
	partFixture struct {
		title   string
		courses []catalog.CourseInput
		exam    catalog.ExamInput
	}

	// Data is what Load created or found.
	Data struct {
		Users     map[string]user.User // by login id
		Formation catalog.FormationDetail
	}
)

var (
	Users = []user.User{
		{FirstName: "Jean", LastName: "Dupont", BirthDate: "1985-05-20", CIN: "AB123456", Role: user.RoleArbitre, Email: "arbitre@ligue.com", LoginID: "jdupont", IsActive: true},
		{FirstName: "Marie", LastName: "Curie", BirthDate: "1990-11-15", CIN: "CD789012", Role: user.RoleEntraineur, Email: "entraineur@ligue.com", LoginID: "mcurie", IsActive: true},
		{FirstName: "Pierre", LastName: "Martin", BirthDate: "1980-01-30", CIN: "EF345678", Role: user.RoleAdministrateur, Email: "admin@ligue.com", LoginID: "pmartin", IsActive: true},
		{FirstName: "Sophie", LastName: "Bernard", BirthDate: "1992-07-22", CIN: "GH901234", Role: user.RoleEmploye, Email: "employe@ligue.com", LoginID: "sbernard", IsActive: false},
		{FirstName: "Admin", LastName: "Principal", BirthDate: "1995-02-22", CIN: "ADMIN", Role: user.RoleAdministrateur, Email: "academy@ligue.com", LoginID: "eligue_academy_admin", IsActive: true},
	}

	formation = catalog.FormationInput{
		Title:       "Formation Initiale des Arbitres",
		Description: "Apprenez les bases de l'arbitrage, des règles du jeu à la gestion de match.",
		ImageURL:    "https://images.unsplash.com/photo-1599408998246-e575d2753a22?q=80&w=2070&auto=format&fit=crop",
	}

	parts = []partFixture{
		{
			title: "Partie 1: Les Fondamentaux",
			courses: []catalog.CourseInput{
				{
					Title:   "Introduction aux règles du jeu",
					Type:    catalog.CourseVideo,
					Content: "https://www.youtube.com/embed/8ca4qNI4qYI",
					QuickTestQuestions: []catalog.Question{
						{ID: 1, Text: "Quelle est la première règle du club?", Options: []string{"On ne parle pas du club", "Toujours être à l'heure", "Respecter l'adversaire"}, CorrectAnswerIndex: 0},
					},
				},
				{
					Title:   "Le hors-jeu expliqué",
					Type:    catalog.CourseArticle,
					Content: "Le hors-jeu est une règle fondamentale du football. Un joueur est en position de hors-jeu s'il est plus près de la ligne de but adverse que le ballon et l'avant-dernier adversaire.",
					QuickTestQuestions: []catalog.Question{
						{ID: 2, Text: "Quand un joueur est-il hors-jeu?", Options: []string{"Derrière le ballon", "Plus près de la ligne de but que le ballon et l'avant-dernier adversaire", "Quand il touche le ballon"}, CorrectAnswerIndex: 1},
					},
				},
				{Title: "Gestion des cartons", Type: catalog.CoursePDF, Content: "https://example.com/docs/gestion-des-cartons.pdf"},
			},
			exam: catalog.ExamInput{
				Title:        "Examen - Les Fondamentaux",
				PassingScore: 80,
				Questions: []catalog.Question{
					{ID: 1, Text: "Combien de joueurs y a-t-il dans une équipe de football sur le terrain?", Options: []string{"10", "11", "12", "9"}, CorrectAnswerIndex: 1},
					{ID: 2, Text: "Que signifie un carton jaune?", Options: []string{"Expulsion", "Avertissement", "Changement de joueur", "But"}, CorrectAnswerIndex: 1},
					{ID: 3, Text: "Quelle est la durée d'un match de football standard?", Options: []string{"80 minutes", "90 minutes", "100 minutes", "120 minutes"}, CorrectAnswerIndex: 1},
				},
			},
		},
		{
			title: "Partie 2: Stratégies Avancées",
			courses: []catalog.CourseInput{
				{Title: "Stratégies défensives", Type: catalog.CourseVideo, Content: "https://www.youtube.com/embed/8ca4qNI4qYI"},
				{Title: "Construire une attaque", Type: catalog.CourseArticle, Content: "Contenu de l'article sur les attaques..."},
			},
			exam: catalog.ExamInput{
				Title:        "Examen - Stratégies Avancées",
				PassingScore: 70,
				Questions: []catalog.Question{
					{ID: 4, Text: "Quelle formation est la plus défensive?", Options: []string{"4-4-2", "4-3-3", "5-3-2", "3-5-2"}, CorrectAnswerIndex: 2},
					{ID: 5, Text: "Qu'est-ce que le 'pressing'?", Options: []string{"Une passe longue", "Une technique de tir", "Une tactique pour récupérer le ballon", "Une célébration"}, CorrectAnswerIndex: 2},
				},
			},
		},
	}
)

// Load creates the demo formation when the catalog is empty, then every demo account
// whose login id is free. Learners are assigned to the demo formation.
func Load(ctx context.Context, usrRepo user.Repository, catalogSvc *catalog.Service) (Data, error) {
	data := Data{Users: make(map[string]user.User, len(Users))}

	fd, err := loadCatalog(ctx, catalogSvc)
	if err != nil {
		return Data{}, err
	}
	data.Formation = fd

	for _, usr := range Users {
		existing, err := usrRepo.GetUser(ctx, user.GetFilter{LoginIDOrEmail: usr.LoginID})
		if err == nil {
			data.Users[existing.LoginID] = existing
			continue
		}
		if !core.IsNotFound(err) {
			return Data{}, errors.Wrap(err, "getting user")
		}

		usr.MustChangePassword = true
		usr.AssignedFormationIDs = []int{}
		if !usr.IsPrivileged() {
			usr.AssignedFormationIDs = []int{fd.ID}
		}
		if err = usr.SetPassword(DefaultPassword); err != nil {
			return Data{}, errors.Wrap(err, "setting password")
		}
		if usr, err = usrRepo.CreateUser(ctx, usr); err != nil {
			return Data{}, errors.Wrap(err, "creating user")
		}
		data.Users[usr.LoginID] = usr
	}
	return data, nil
}

func loadCatalog(ctx context.Context, svc *catalog.Service) (catalog.FormationDetail, error) {
	formations, err := svc.QueryFormations(ctx)
	if err != nil {
		return catalog.FormationDetail{}, errors.Wrap(err, "querying formations")
	}
	if len(formations) > 0 {
		return svc.Detail(ctx, formations[0].ID)
	}

	f, err := svc.CreateFormation(ctx, formation)
	if err != nil {
		return catalog.FormationDetail{}, errors.Wrap(err, "creating formation")
	}
	for _, pf := range parts {
		pd, err := svc.CreatePart(ctx, f.ID, catalog.PartInput{Title: pf.title})
		if err != nil {
			return catalog.FormationDetail{}, errors.Wrap(err, "creating part")
		}
		for _, in := range pf.courses {
			if _, err = svc.CreateCourse(ctx, pd.ID, in); err != nil {
				return catalog.FormationDetail{}, errors.Wrap(err, "creating course")
			}
		}
		if _, err = svc.UpdateExam(ctx, pd.ExamID, pf.exam); err != nil {
			return catalog.FormationDetail{}, errors.Wrap(err, "updating exam")
		}
	}
	return svc.Detail(ctx, f.ID)
}
