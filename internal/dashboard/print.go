package dashboard

import (
	"html/template"
	"strings"

	"tameer/internal/models"
)

// ExportPrintView renders a single request into a self-contained
// printable HTML document. Pure formatting: fixed layout, embedded
// field values, nothing machine-readable.
func ExportPrintView(req *models.ServiceRequest) (string, error) {
	data := printData{
		Request:    req,
		StatusCSS:  statusClass(req.Status),
		HasEmail:   strings.TrimSpace(req.Email) != "",
		HasDate:    req.PreferredDate != nil,
		HasPhotos:  strings.TrimSpace(req.PhotoNames) != "",
		PrintedFor: req.RequestID,
	}

	var b strings.Builder
	if err := printTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

type printData struct {
	Request    *models.ServiceRequest
	StatusCSS  string
	HasEmail   bool
	HasDate    bool
	HasPhotos  bool
	PrintedFor string
}

func statusClass(s models.Status) string {
	switch s {
	case models.StatusNew:
		return "status-new"
	case models.StatusInProgress:
		return "status-progress"
	case models.StatusCompleted:
		return "status-completed"
	default:
		return "status-rejected"
	}
}

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html dir="rtl" lang="ar">
<head>
<meta charset="utf-8">
<title>طلب خدمة {{.Request.RequestID}}</title>
<style>
  body { font-family: "Tahoma", sans-serif; margin: 40px; color: #1f2937; }
  h1 { font-size: 22px; border-bottom: 2px solid #b91c1c; padding-bottom: 8px; }
  table { width: 100%; border-collapse: collapse; margin-top: 16px; }
  td { padding: 8px 12px; border: 1px solid #e5e7eb; vertical-align: top; }
  td.label { width: 30%; background: #f9fafb; font-weight: bold; }
  .status-badge { display: inline-block; padding: 2px 12px; border-radius: 12px; font-size: 13px; }
  .status-new { background: #dbeafe; color: #1e40af; }
  .status-progress { background: #fef9c3; color: #854d0e; }
  .status-completed { background: #dcfce7; color: #166534; }
  .status-rejected { background: #fee2e2; color: #991b1b; }
  .footer { margin-top: 24px; font-size: 12px; color: #6b7280; }
</style>
</head>
<body>
<h1>طلب خدمة رقم {{.Request.RequestID}}</h1>
<span class="status-badge {{.StatusCSS}}">{{.Request.Status}}</span>
<table>
  <tr><td class="label">الاسم الكامل</td><td>{{.Request.Name}}</td></tr>
  <tr><td class="label">رقم الهاتف</td><td>{{.Request.Phone}}</td></tr>
{{- if .HasEmail}}
  <tr><td class="label">البريد الإلكتروني</td><td>{{.Request.Email}}</td></tr>
{{- end}}
  <tr><td class="label">الولاية</td><td>{{.Request.Location}}</td></tr>
  <tr><td class="label">العنوان التفصيلي</td><td>{{.Request.Address}}</td></tr>
  <tr><td class="label">نوع الخدمة</td><td>{{.Request.ServiceType}}</td></tr>
  <tr><td class="label">مستوى الأولوية</td><td>{{.Request.Urgency}}</td></tr>
{{- if .HasDate}}
  <tr><td class="label">التاريخ المفضل</td><td>{{.Request.PreferredDate.Format "2006-01-02"}}</td></tr>
{{- end}}
  <tr><td class="label">وصف المشكلة</td><td>{{.Request.Description}}</td></tr>
{{- if .HasPhotos}}
  <tr><td class="label">الصور المرفقة</td><td>{{.Request.PhotoNames}}</td></tr>
{{- end}}
  <tr><td class="label">تاريخ الإنشاء</td><td>{{.Request.CreatedAt.Format "2006-01-02 15:04"}}</td></tr>
  <tr><td class="label">آخر تحديث</td><td>{{.Request.UpdatedAt.Format "2006-01-02 15:04"}}</td></tr>
</table>
<div class="footer">احتفظ برقم الطلب للمراجعة: {{.PrintedFor}}</div>
</body>
</html>
`))
