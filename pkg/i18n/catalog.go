package i18n

// catalog holds the interface strings per language. Parameters use the
// universal-translator {0} placeholder syntax.
var catalog = map[string]map[string]string{
	"en": {
		"validation.username": "{0} may only contain letters, digits and underscores",
		"validation.phone":    "{0} must be a valid phone number",

		"nav.dashboard": "Dashboard",
		"nav.profile":   "Profile",
		"nav.settings":  "Settings",
		"nav.logout":    "Log out",
		"nav.login":     "Log in",
		"nav.register":  "Register",
		"nav.language":  "Language",

		"common.save":     "Save",
		"common.cancel":   "Cancel",
		"common.back":     "Back",
		"common.continue": "Continue",
		"common.none":     "Nothing to show yet.",
		"common.yes":      "Yes",
		"common.no":       "No",

		"login.title":       "Sign in",
		"login.identifier":  "Username or email",
		"login.password":    "Password",
		"login.submit":      "Sign in",
		"login.forgot":      "Forgot your password?",
		"login.no_account":  "New student? Register here",
		"login.logged_out":  "You have been signed out.",
		"login.maintenance": "The portal is under maintenance. Only administrators can sign in.",

		"register.title":            "Student registration",
		"register.username":         "Username",
		"register.email":            "Email",
		"register.password":         "Password",
		"register.confirm_password": "Confirm password",
		"register.full_name":        "Full name",
		"register.phone":            "Phone",
		"register.date_of_birth":    "Date of birth",
		"register.gender":           "Gender",
		"register.gender_male":      "Male",
		"register.gender_female":    "Female",
		"register.address":          "Address",
		"register.grade_level":      "Grade",
		"register.guardian_name":    "Guardian name",
		"register.guardian_phone":   "Guardian phone",
		"register.guardian_email":   "Guardian email",
		"register.accept_terms":     "I confirm the information above is correct",
		"register.submit":           "Register",
		"register.success":          "Registration received. You can sign in once an administrator approves your account.",
		"register.disabled":         "Registration is currently closed.",

		"password.rules":    "At least 8 characters with upper and lower case letters, a digit and a special character.",
		"password.strength": "Strength",

		"recovery.title":                     "Account recovery",
		"recovery.identify":                  "Enter your username or email and choose how to verify your identity.",
		"recovery.identifier":                "Username or email",
		"recovery.method":                    "Verification method",
		"recovery.method.email":              "Email link",
		"recovery.method.sms":                "SMS code",
		"recovery.method.backup_code":        "Backup code",
		"recovery.method.security_questions": "Security questions",
		"recovery.method.two_factor":         "Authenticator app",
		"recovery.method.identity":           "Identity details",
		"recovery.code_sent":                 "We sent a verification code to {0}.",
		"recovery.link_sent":                 "We sent a recovery link to {0}. Open it or paste the code below.",
		"recovery.code":                      "Verification code",
		"recovery.backup_code":               "Backup code",
		"recovery.answer":                    "Answer",
		"recovery.totp":                      "Authenticator code",
		"recovery.identity_hint":             "Enter the details exactly as registered.",
		"recovery.date_of_birth":             "Date of birth (students)",
		"recovery.verify":                    "Verify",
		"recovery.new_password":              "New password",
		"recovery.confirm_password":          "Confirm new password",
		"recovery.reset":                     "Reset password",
		"recovery.done":                      "Your password has been reset. You can now sign in.",
		"recovery.start_over":                "Start over",

		"dashboard.title":                "Dashboard",
		"dashboard.welcome":              "Welcome, {0}",
		"dashboard.students":             "Students",
		"dashboard.teachers":             "Teachers",
		"dashboard.staff":                "Staff",
		"dashboard.admins":               "Administrators",
		"dashboard.pending":              "Pending approvals",
		"dashboard.active_sessions":      "Active sessions",
		"dashboard.recent_registrations": "Registrations (7 days)",
		"dashboard.recent_activity":      "Recent activity",
		"dashboard.by_grade":             "Students by grade",
		"dashboard.student_code":         "Student ID",
		"dashboard.grade":                "Grade",
		"dashboard.last_login":           "Last login",

		"profile.title":               "My profile",
		"profile.account":             "Account",
		"profile.security":            "Security",
		"profile.preferences":         "Preferences",
		"profile.sessions":            "Active sessions",
		"profile.activity":            "Recent activity",
		"profile.api":                 "API access",
		"profile.update":              "Update profile",
		"profile.change_password":     "Change password",
		"profile.current_password":    "Current password",
		"profile.new_password":        "New password",
		"profile.confirm_password":    "Confirm new password",
		"profile.theme":               "Theme",
		"profile.theme.light":         "Light",
		"profile.theme.dark":          "Dark",
		"profile.theme.auto":          "System",
		"profile.language":            "Language",
		"profile.email_notifications": "Email notifications",
		"profile.two_factor":          "Two-factor authentication",
		"profile.two_factor_setup":    "Set up",
		"profile.two_factor_confirm":  "Confirm code",
		"profile.two_factor_disable":  "Disable",
		"profile.backup_codes":        "Backup codes",
		"profile.generate_codes":      "Generate new codes",
		"profile.codes_once":          "Store these codes somewhere safe. They are shown only once.",
		"profile.security_questions":  "Security questions",
		"profile.question":            "Question",
		"profile.answer":              "Answer",
		"profile.api_key":             "API key",
		"profile.regenerate_api":      "Generate new credentials",
		"profile.terminate":           "Sign out",
		"profile.terminate_others":    "Sign out all other sessions",
		"profile.current_session":     "This device",

		"settings.title":         "Administration",
		"settings.general":       "System settings",
		"settings.users":         "Pending registrations",
		"settings.backups":       "Backups",
		"settings.monitor":       "System monitor",
		"settings.reports":       "Reports",
		"settings.activity":      "Activity log",
		"settings.save":          "Save settings",
		"settings.approve":       "Approve",
		"settings.reject":        "Reject",
		"settings.suspend":       "Suspend",
		"settings.create_backup": "Create backup",
		"settings.download":      "Download",
		"settings.delete":        "Delete",
		"settings.clear_cache":   "Clear cache",
		"settings.export_csv":    "Export CSV",
		"settings.export_pdf":    "Export PDF",
		"settings.refresh":       "Refresh",

		"error.title": "Something went wrong",
		"error.403":   "You do not have access to this page.",
		"error.404":   "The page you are looking for does not exist.",
		"error.429":   "Too many attempts. Please try again later.",
		"error.500":   "An unexpected error occurred. Please try again.",
		"error.home":  "Back to the home page",
	},
	"id": {
		"validation.username": "{0} hanya boleh berisi huruf, angka, dan garis bawah",
		"validation.phone":    "{0} harus berupa nomor telepon yang valid",

		"nav.dashboard": "Dasbor",
		"nav.profile":   "Profil",
		"nav.settings":  "Pengaturan",
		"nav.logout":    "Keluar",
		"nav.login":     "Masuk",
		"nav.register":  "Daftar",
		"nav.language":  "Bahasa",

		"common.save":     "Simpan",
		"common.cancel":   "Batal",
		"common.back":     "Kembali",
		"common.continue": "Lanjut",
		"common.none":     "Belum ada data.",
		"common.yes":      "Ya",
		"common.no":       "Tidak",

		"login.title":       "Masuk",
		"login.identifier":  "Nama pengguna atau email",
		"login.password":    "Kata sandi",
		"login.submit":      "Masuk",
		"login.forgot":      "Lupa kata sandi?",
		"login.no_account":  "Siswa baru? Daftar di sini",
		"login.logged_out":  "Anda telah keluar.",
		"login.maintenance": "Portal sedang dalam pemeliharaan. Hanya administrator yang dapat masuk.",

		"register.title":            "Pendaftaran siswa",
		"register.username":         "Nama pengguna",
		"register.email":            "Email",
		"register.password":         "Kata sandi",
		"register.confirm_password": "Konfirmasi kata sandi",
		"register.full_name":        "Nama lengkap",
		"register.phone":            "Telepon",
		"register.date_of_birth":    "Tanggal lahir",
		"register.gender":           "Jenis kelamin",
		"register.gender_male":      "Laki-laki",
		"register.gender_female":    "Perempuan",
		"register.address":          "Alamat",
		"register.grade_level":      "Kelas",
		"register.guardian_name":    "Nama wali",
		"register.guardian_phone":   "Telepon wali",
		"register.guardian_email":   "Email wali",
		"register.accept_terms":     "Saya menyatakan data di atas benar",
		"register.submit":           "Daftar",
		"register.success":          "Pendaftaran diterima. Anda dapat masuk setelah akun disetujui administrator.",
		"register.disabled":         "Pendaftaran sedang ditutup.",

		"password.rules":    "Minimal 8 karakter dengan huruf besar dan kecil, angka, dan karakter khusus.",
		"password.strength": "Kekuatan",

		"recovery.title":                     "Pemulihan akun",
		"recovery.identify":                  "Masukkan nama pengguna atau email dan pilih cara verifikasi.",
		"recovery.identifier":                "Nama pengguna atau email",
		"recovery.method":                    "Metode verifikasi",
		"recovery.method.email":              "Tautan email",
		"recovery.method.sms":                "Kode SMS",
		"recovery.method.backup_code":        "Kode cadangan",
		"recovery.method.security_questions": "Pertanyaan keamanan",
		"recovery.method.two_factor":         "Aplikasi autentikator",
		"recovery.method.identity":           "Data identitas",
		"recovery.code_sent":                 "Kode verifikasi telah dikirim ke {0}.",
		"recovery.link_sent":                 "Tautan pemulihan telah dikirim ke {0}. Buka tautan atau tempel kodenya di bawah.",
		"recovery.code":                      "Kode verifikasi",
		"recovery.backup_code":               "Kode cadangan",
		"recovery.answer":                    "Jawaban",
		"recovery.totp":                      "Kode autentikator",
		"recovery.identity_hint":             "Masukkan data persis seperti saat mendaftar.",
		"recovery.date_of_birth":             "Tanggal lahir (siswa)",
		"recovery.verify":                    "Verifikasi",
		"recovery.new_password":              "Kata sandi baru",
		"recovery.confirm_password":          "Konfirmasi kata sandi baru",
		"recovery.reset":                     "Atur ulang kata sandi",
		"recovery.done":                      "Kata sandi Anda telah diatur ulang. Silakan masuk.",
		"recovery.start_over":                "Mulai ulang",

		"dashboard.title":                "Dasbor",
		"dashboard.welcome":              "Selamat datang, {0}",
		"dashboard.students":             "Siswa",
		"dashboard.teachers":             "Guru",
		"dashboard.staff":                "Staf",
		"dashboard.admins":               "Administrator",
		"dashboard.pending":              "Menunggu persetujuan",
		"dashboard.active_sessions":      "Sesi aktif",
		"dashboard.recent_registrations": "Pendaftaran (7 hari)",
		"dashboard.recent_activity":      "Aktivitas terbaru",
		"dashboard.by_grade":             "Siswa per kelas",
		"dashboard.student_code":         "NIS",
		"dashboard.grade":                "Kelas",
		"dashboard.last_login":           "Terakhir masuk",

		"profile.title":               "Profil saya",
		"profile.account":             "Akun",
		"profile.security":            "Keamanan",
		"profile.preferences":         "Preferensi",
		"profile.sessions":            "Sesi aktif",
		"profile.activity":            "Aktivitas terbaru",
		"profile.api":                 "Akses API",
		"profile.update":              "Perbarui profil",
		"profile.change_password":     "Ubah kata sandi",
		"profile.current_password":    "Kata sandi saat ini",
		"profile.new_password":        "Kata sandi baru",
		"profile.confirm_password":    "Konfirmasi kata sandi baru",
		"profile.theme":               "Tema",
		"profile.theme.light":         "Terang",
		"profile.theme.dark":          "Gelap",
		"profile.theme.auto":          "Sistem",
		"profile.language":            "Bahasa",
		"profile.email_notifications": "Notifikasi email",
		"profile.two_factor":          "Autentikasi dua faktor",
		"profile.two_factor_setup":    "Aktifkan",
		"profile.two_factor_confirm":  "Konfirmasi kode",
		"profile.two_factor_disable":  "Nonaktifkan",
		"profile.backup_codes":        "Kode cadangan",
		"profile.generate_codes":      "Buat kode baru",
		"profile.codes_once":          "Simpan kode ini di tempat aman. Kode hanya ditampilkan sekali.",
		"profile.security_questions":  "Pertanyaan keamanan",
		"profile.question":            "Pertanyaan",
		"profile.answer":              "Jawaban",
		"profile.api_key":             "Kunci API",
		"profile.regenerate_api":      "Buat kredensial baru",
		"profile.terminate":           "Keluarkan",
		"profile.terminate_others":    "Keluarkan semua sesi lain",
		"profile.current_session":     "Perangkat ini",

		"settings.title":         "Administrasi",
		"settings.general":       "Pengaturan sistem",
		"settings.users":         "Pendaftaran tertunda",
		"settings.backups":       "Cadangan",
		"settings.monitor":       "Pemantau sistem",
		"settings.reports":       "Laporan",
		"settings.activity":      "Log aktivitas",
		"settings.save":          "Simpan pengaturan",
		"settings.approve":       "Setujui",
		"settings.reject":        "Tolak",
		"settings.suspend":       "Tangguhkan",
		"settings.create_backup": "Buat cadangan",
		"settings.download":      "Unduh",
		"settings.delete":        "Hapus",
		"settings.clear_cache":   "Bersihkan cache",
		"settings.export_csv":    "Ekspor CSV",
		"settings.export_pdf":    "Ekspor PDF",
		"settings.refresh":       "Muat ulang",

		"error.title": "Terjadi kesalahan",
		"error.403":   "Anda tidak memiliki akses ke halaman ini.",
		"error.404":   "Halaman yang Anda cari tidak ditemukan.",
		"error.429":   "Terlalu banyak percobaan. Silakan coba lagi nanti.",
		"error.500":   "Terjadi kesalahan tak terduga. Silakan coba lagi.",
		"error.home":  "Kembali ke beranda",
	},
	"fr": {
		"validation.username": "{0} ne peut contenir que des lettres, des chiffres et des tirets bas",
		"validation.phone":    "{0} doit être un numéro de téléphone valide",

		"nav.dashboard": "Tableau de bord",
		"nav.profile":   "Profil",
		"nav.settings":  "Paramètres",
		"nav.logout":    "Déconnexion",
		"nav.login":     "Connexion",
		"nav.register":  "Inscription",
		"nav.language":  "Langue",

		"common.save":     "Enregistrer",
		"common.cancel":   "Annuler",
		"common.back":     "Retour",
		"common.continue": "Continuer",
		"common.none":     "Rien à afficher pour le moment.",
		"common.yes":      "Oui",
		"common.no":       "Non",

		"login.title":       "Connexion",
		"login.identifier":  "Nom d'utilisateur ou e-mail",
		"login.password":    "Mot de passe",
		"login.submit":      "Se connecter",
		"login.forgot":      "Mot de passe oublié ?",
		"login.no_account":  "Nouvel élève ? Inscrivez-vous",
		"login.logged_out":  "Vous êtes déconnecté.",
		"login.maintenance": "Le portail est en maintenance. Seuls les administrateurs peuvent se connecter.",

		"register.title":            "Inscription des élèves",
		"register.username":         "Nom d'utilisateur",
		"register.email":            "E-mail",
		"register.password":         "Mot de passe",
		"register.confirm_password": "Confirmer le mot de passe",
		"register.full_name":        "Nom complet",
		"register.phone":            "Téléphone",
		"register.date_of_birth":    "Date de naissance",
		"register.gender":           "Genre",
		"register.gender_male":      "Masculin",
		"register.gender_female":    "Féminin",
		"register.address":          "Adresse",
		"register.grade_level":      "Classe",
		"register.guardian_name":    "Nom du responsable",
		"register.guardian_phone":   "Téléphone du responsable",
		"register.guardian_email":   "E-mail du responsable",
		"register.accept_terms":     "Je certifie que les informations ci-dessus sont exactes",
		"register.submit":           "S'inscrire",
		"register.success":          "Inscription reçue. Vous pourrez vous connecter après validation par un administrateur.",
		"register.disabled":         "Les inscriptions sont actuellement fermées.",

		"password.rules":    "Au moins 8 caractères avec majuscules, minuscules, un chiffre et un caractère spécial.",
		"password.strength": "Robustesse",

		"recovery.title":                     "Récupération du compte",
		"recovery.identify":                  "Saisissez votre nom d'utilisateur ou e-mail et choisissez une méthode de vérification.",
		"recovery.identifier":                "Nom d'utilisateur ou e-mail",
		"recovery.method":                    "Méthode de vérification",
		"recovery.method.email":              "Lien par e-mail",
		"recovery.method.sms":                "Code SMS",
		"recovery.method.backup_code":        "Code de secours",
		"recovery.method.security_questions": "Questions de sécurité",
		"recovery.method.two_factor":         "Application d'authentification",
		"recovery.method.identity":           "Informations d'identité",
		"recovery.code_sent":                 "Un code de vérification a été envoyé à {0}.",
		"recovery.link_sent":                 "Un lien de récupération a été envoyé à {0}. Ouvrez-le ou collez le code ci-dessous.",
		"recovery.code":                      "Code de vérification",
		"recovery.backup_code":               "Code de secours",
		"recovery.answer":                    "Réponse",
		"recovery.totp":                      "Code d'authentification",
		"recovery.identity_hint":             "Saisissez les informations exactement comme à l'inscription.",
		"recovery.date_of_birth":             "Date de naissance (élèves)",
		"recovery.verify":                    "Vérifier",
		"recovery.new_password":              "Nouveau mot de passe",
		"recovery.confirm_password":          "Confirmer le nouveau mot de passe",
		"recovery.reset":                     "Réinitialiser le mot de passe",
		"recovery.done":                      "Votre mot de passe a été réinitialisé. Vous pouvez vous connecter.",
		"recovery.start_over":                "Recommencer",

		"dashboard.title":                "Tableau de bord",
		"dashboard.welcome":              "Bienvenue, {0}",
		"dashboard.students":             "Élèves",
		"dashboard.teachers":             "Enseignants",
		"dashboard.staff":                "Personnel",
		"dashboard.admins":               "Administrateurs",
		"dashboard.pending":              "En attente de validation",
		"dashboard.active_sessions":      "Sessions actives",
		"dashboard.recent_registrations": "Inscriptions (7 jours)",
		"dashboard.recent_activity":      "Activité récente",
		"dashboard.by_grade":             "Élèves par classe",
		"dashboard.student_code":         "Matricule",
		"dashboard.grade":                "Classe",
		"dashboard.last_login":           "Dernière connexion",

		"profile.title":               "Mon profil",
		"profile.account":             "Compte",
		"profile.security":            "Sécurité",
		"profile.preferences":         "Préférences",
		"profile.sessions":            "Sessions actives",
		"profile.activity":            "Activité récente",
		"profile.api":                 "Accès API",
		"profile.update":              "Mettre à jour le profil",
		"profile.change_password":     "Changer le mot de passe",
		"profile.current_password":    "Mot de passe actuel",
		"profile.new_password":        "Nouveau mot de passe",
		"profile.confirm_password":    "Confirmer le nouveau mot de passe",
		"profile.theme":               "Thème",
		"profile.theme.light":         "Clair",
		"profile.theme.dark":          "Sombre",
		"profile.theme.auto":          "Système",
		"profile.language":            "Langue",
		"profile.email_notifications": "Notifications par e-mail",
		"profile.two_factor":          "Authentification à deux facteurs",
		"profile.two_factor_setup":    "Configurer",
		"profile.two_factor_confirm":  "Confirmer le code",
		"profile.two_factor_disable":  "Désactiver",
		"profile.backup_codes":        "Codes de secours",
		"profile.generate_codes":      "Générer de nouveaux codes",
		"profile.codes_once":          "Conservez ces codes en lieu sûr. Ils ne sont affichés qu'une fois.",
		"profile.security_questions":  "Questions de sécurité",
		"profile.question":            "Question",
		"profile.answer":              "Réponse",
		"profile.api_key":             "Clé API",
		"profile.regenerate_api":      "Générer de nouveaux identifiants",
		"profile.terminate":           "Déconnecter",
		"profile.terminate_others":    "Déconnecter toutes les autres sessions",
		"profile.current_session":     "Cet appareil",

		"settings.title":         "Administration",
		"settings.general":       "Paramètres système",
		"settings.users":         "Inscriptions en attente",
		"settings.backups":       "Sauvegardes",
		"settings.monitor":       "Supervision",
		"settings.reports":       "Rapports",
		"settings.activity":      "Journal d'activité",
		"settings.save":          "Enregistrer les paramètres",
		"settings.approve":       "Valider",
		"settings.reject":        "Refuser",
		"settings.suspend":       "Suspendre",
		"settings.create_backup": "Créer une sauvegarde",
		"settings.download":      "Télécharger",
		"settings.delete":        "Supprimer",
		"settings.clear_cache":   "Vider le cache",
		"settings.export_csv":    "Exporter en CSV",
		"settings.export_pdf":    "Exporter en PDF",
		"settings.refresh":       "Actualiser",

		"error.title": "Une erreur est survenue",
		"error.403":   "Vous n'avez pas accès à cette page.",
		"error.404":   "La page demandée n'existe pas.",
		"error.429":   "Trop de tentatives. Veuillez réessayer plus tard.",
		"error.500":   "Une erreur inattendue est survenue. Veuillez réessayer.",
		"error.home":  "Retour à l'accueil",
	},
}
